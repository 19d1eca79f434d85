package notifier

import (
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/loworbit/txtrack/internal/platform/txledger"
)

// State is the visible state of an indicator
type State string

const (
	StateLoading   State = "loading"
	StateSuccess   State = "success"
	StateError     State = "error"
	StateUnknown   State = "unknown"
	StateCancelled State = "cancelled"
)

// IsLive reports whether the indicator still waits for an outcome
func (s State) IsLive() bool {
	return s == StateLoading || s == StateUnknown
}

// Indicator is one user-visible notification
type Indicator struct {
	Key       string           `json:"key"`
	TxID      string           `json:"txId,omitempty"`
	Subject   txledger.Subject `json:"subject"`
	State     State            `json:"state"`
	Message   string           `json:"message"`
	Detail    string           `json:"detail,omitempty"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type messages struct {
	loading string
	success string
	failure string
}

var subjectMessages = map[txledger.Subject]messages{
	txledger.SubjectApprove: {
		loading: "Approval in progress",
		success: "Successfully approved",
		failure: "An error occurred during your approval",
	},
	txledger.SubjectDeposit: {
		loading: "Deposit in progress",
		success: "Successfully deposited",
		failure: "An error occurred during your deposit",
	},
	txledger.SubjectWithdraw: {
		loading: "Withdrawal in progress",
		success: "Successfully withdrawn",
		failure: "An error occurred during your withdrawal",
	},
	txledger.SubjectMigrate: {
		loading: "Migration in progress",
		success: "Successfully migrated",
		failure: "An error occurred during your migration",
	},
}

const (
	unknownMessage   = "Transaction status unknown, it may still confirm"
	cancelledMessage = "Transaction cancelled"
)

func messagesFor(subject txledger.Subject) messages {
	if m, ok := subjectMessages[subject]; ok {
		return m
	}
	return messages{
		loading: "Transaction in progress",
		success: "Transaction confirmed",
		failure: "An error occurred during your transaction",
	}
}

// capitalize upper-cases the first letter of every sentence in s
func capitalize(s string) string {
	out := make([]rune, 0, utf8.RuneCountInString(s))
	upper := true
	for _, r := range s {
		if upper && unicode.IsLetter(r) {
			r = unicode.ToUpper(r)
			upper = false
		} else if unicode.IsLetter(r) || unicode.IsDigit(r) {
			upper = false
		}
		if r == '.' || r == '!' || r == '?' {
			upper = true
		}
		out = append(out, r)
	}
	return string(out)
}
