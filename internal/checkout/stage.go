package checkout

type Stage string

const (
	StageInformation Stage = "information"
	StageVerifying   Stage = "verifying"
	StagePayment     Stage = "payment"
)

// Forward moves are linear; the only backward move is verifying -> information,
// which discards the verification session.
var validNext = map[Stage]map[Stage]bool{
	StageInformation: {StageVerifying: true},
	StageVerifying:   {StagePayment: true, StageInformation: true},
	StagePayment:     {},
}

func CanTransition(from, to Stage) bool {
	return validNext[from][to]
}
