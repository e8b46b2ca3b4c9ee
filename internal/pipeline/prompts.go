package pipeline

import "fmt"

const contentRelevancePrompt = `Does this PDF contain a job offer related to software development?
Answer only with "yes" or "no".`

const requirementFromPDFPrompt = `Read the attached job description PDF and summarize it in Spanish,
in the style of: "Necesito un desarrollador experto en React y Tailwind".
Reply with that single sentence only.`

func buildTextValidationPrompt(input string) string {
	return fmt.Sprintf(`You are validating user text input. The input must be referring to a software developer job description.
If the input is valid, respond ONLY with "yes". If the input is invalid, respond with a brief reason why is not valid.

User Input: %q`, input)
}
