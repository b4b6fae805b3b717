package thread

import (
	"log/slog"

	"github.com/alanmeadows/applybot/internal/issue"
	"github.com/alanmeadows/applybot/internal/provider"
)

// Reason explains a trigger decision.
type Reason string

// Reasons reported by Evaluate.
const (
	ReasonEligible       Reason = "eligible"
	ReasonBotReply       Reason = "reply is bot-authored"
	ReasonNoCommand      Reason = "reply does not contain the apply command"
	ReasonAlreadyApplied Reason = "already applied"
	ReasonNotBotRoot     Reason = "root is not a bot issue comment"
	ReasonNoRecord       Reason = "root has no issue record"
)

// Decision is the outcome of Validator.Evaluate.
type Decision struct {
	Eligible bool
	Reason   Reason
	// Record and Status describe the root when it decoded.
	Record *issue.Record
	Status issue.Status
}

// Validator gates apply commands.
type Validator struct {
	classifier *Classifier
	commands   Commands
}

// NewValidator returns a Validator using classifier to recognise bot comments.
func NewValidator(classifier *Classifier, commands Commands) *Validator {
	return &Validator{classifier: classifier, commands: commands}
}

// Evaluate decides whether reply may apply the patch carried by root.
// A root without a status marker is treated as analyzed. A root that is
// already applied is never eligible, whatever the reply says.
func (v *Validator) Evaluate(reply, root provider.Comment) Decision {
	if v.classifier.IsBot(reply) {
		return Decision{Reason: ReasonBotReply}
	}
	if !v.commands.HasApply(reply.Body) {
		return Decision{Reason: ReasonNoCommand}
	}

	status := issue.StatusOf(root.Body)
	if status == issue.StatusApplied {
		return Decision{Reason: ReasonAlreadyApplied, Status: status}
	}
	if root.ID == reply.ID || !v.classifier.IsBot(root) {
		return Decision{Reason: ReasonNotBotRoot, Status: status}
	}

	rec, err := issue.Decode(root.Body)
	if err != nil {
		slog.Warn("root comment has unreadable issue data", "comment", root.ID, "error", err)
	}
	if rec == nil {
		return Decision{Reason: ReasonNoRecord, Status: status}
	}
	return Decision{Eligible: true, Reason: ReasonEligible, Record: rec, Status: status}
}
