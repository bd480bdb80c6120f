package notes

import "fmt"

// DefaultPrompts are used for modes without a configured prompt.
var DefaultPrompts = map[Mode]string{
	Executive: "Write an executive summary of this meeting. Start with a one-sentence overview, " +
		"then list the key decisions and outcomes as bullet points. Keep it under 200 words.",
	Holistic: "Write a holistic analysis of this meeting. Cover the topics discussed in order, " +
		"the positions people took, open questions and any risks raised. Use markdown headings.",
	Tasks: "Extract every actionable task from this meeting as a markdown checklist. " +
		"For each task include the owner and due date when they are mentioned.",
}

const promptTemplate = "You are an expert meeting assistant.\n\n%s\n\nUse the meeting content below:\n---\n%s\n---\nReturn only the notes."

// BuildPrompt wraps a mode prompt and the meeting content into the full
// request sent to the model.
func BuildPrompt(prompt, content string) string {
	return fmt.Sprintf(promptTemplate, prompt, content)
}
