package conversation

import (
	"strings"

	"github.com/wolfman30/baymax-health/internal/triage"
)

const (
	// EmergencyResponse is returned verbatim for any emergency turn.
	EmergencyResponse = "This may be a medical emergency. Call 911 or your local emergency number now, " +
		"or go to the nearest emergency room immediately. Please seek emergency care immediately " +
		"and do not wait for an online reply."

	// PHIRefusalResponse is returned verbatim whenever the redactor finds PHI.
	PHIRefusalResponse = "For your privacy, I can't respond to messages that include personal " +
		"identifiers such as names, phone numbers, email addresses, dates of birth, street addresses " +
		"or Social Security numbers. Please remove those details and ask your question again."
)

const safetyRules = `You are Baymax, a careful health information assistant.
Rules:
- Give general health information only. Do not diagnose and do not prescribe.
- Encourage the user to confirm medical decisions with a licensed clinician or pharmacist.
- Bracketed tokens such as [NAME_0] stand in for removed personal details. Never guess what they contain and never ask for them.
- If anything suggests a medical emergency, tell the user to call 911 or go to the nearest emergency room.
- Keep answers short, plain and kind.`

// Prompt is one generation request. System carries the safety rules,
// History the windowed prior turns oldest first, and Message the final user
// message with the prescription block and category folded in.
type Prompt struct {
	System  string
	History []ChatMessage
	Message string
}

// Messages returns History followed by the final user message.
func (p Prompt) Messages() []ChatMessage {
	out := make([]ChatMessage, 0, len(p.History)+1)
	out = append(out, p.History...)
	return append(out, ChatMessage{Role: ChatRoleUser, Content: p.Message})
}

// String renders the prompt as a single text block.
func (p Prompt) String() string {
	var b strings.Builder
	b.WriteString(p.System)
	if len(p.History) > 0 {
		b.WriteString("\n\nConversation so far:\n")
		b.WriteString(renderHistory(p.History))
	}
	b.WriteString("\n\n")
	b.WriteString(p.Message)
	b.WriteString("\nAssistant:")
	return b.String()
}

func buildPrompt(history []ChatMessage, prescription string, class triage.Classification, redactedMessage string) Prompt {
	var b strings.Builder
	if prescription != "" {
		b.WriteString(prescription)
		b.WriteString("\n\n")
	}
	b.WriteString("Message category: ")
	b.WriteString(string(class))
	b.WriteString("\nUser message: ")
	b.WriteString(redactedMessage)
	return Prompt{System: safetyRules, History: history, Message: b.String()}
}
