package openai

import (
	"fmt"
	"strings"
)

const labelResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "name": {
      "type": "string",
      "minLength": 1,
      "maxLength": 40
    }
  },
  "required": ["name"],
  "additionalProperties": false
}`

const labelPromptTemplate = `You name clusters of statute provisions. The user message contains excerpts from
paragraphs that were grouped together because they cover the same legal subject.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- The name is a short noun phrase (2-6 words) describing the shared legal subject.
- Write the name in the same language as the excerpts.
- Do not cite article numbers or the name of a single law unless every excerpt comes from it.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input:
- 도로를 점용하려는 자는 도로관리청의 허가를 받아야 한다.
- 점용허가를 받은 자는 점용료를 납부하여야 한다.
Output:
{"name":"도로 점용허가 및 점용료"}`

// maxSampleRunes bounds each excerpt sent to the labeler.
const maxSampleRunes = 300

// buildSystemPrompt creates the labeler system prompt with the schema embedded.
func buildSystemPrompt() string {
	return fmt.Sprintf(labelPromptTemplate, labelResponseSchema)
}

// buildUserPrompt renders samples as a bullet list, truncating long excerpts.
func buildUserPrompt(samples []string) string {
	var b strings.Builder
	for _, s := range samples {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			continue
		}
		if r := []rune(s); len(r) > maxSampleRunes {
			s = string(r[:maxSampleRunes])
		}
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	return b.String()
}
