package model

// Decision is the terminal outcome of a qualification conversation.
type Decision string

const (
	DecisionNone        Decision = ""
	DecisionPreApproved Decision = "pre_approved"
	DecisionRejected    Decision = "rejected"
	DecisionNeedsReview Decision = "needs_review"
)

// ViolationSeverity distinguishes hard failures from advisory gaps.
type ViolationSeverity string

const (
	SeverityError   ViolationSeverity = "error"
	SeverityWarning ViolationSeverity = "warning"
)

// RuleViolation is one failed business rule, produced fresh on every
// validation pass.
type RuleViolation struct {
	RuleID   string            `json:"rule_id"`
	Message  string            `json:"message"`
	Severity ViolationSeverity `json:"severity"`
}

// LoanPurpose values accepted by the purpose-validity rule.
const (
	PurposePrimary    = "primary"
	PurposeSecondHome = "second_home"
	PurposeInvestment = "investment"
)

// ValidPurposes is the closed set of loan purposes.
var ValidPurposes = map[string]bool{
	PurposePrimary:    true,
	PurposeSecondHome: true,
	PurposeInvestment: true,
}

// IncomeFlexiblePurpose reports whether the purpose waives the income
// documentation rule (investment/DSCR programs qualify on property cash flow).
func IncomeFlexiblePurpose(purpose string) bool {
	return purpose == PurposeInvestment
}
