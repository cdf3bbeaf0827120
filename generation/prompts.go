package generation

import (
	"fmt"
	"strings"
)

// Generation settings. The fine tuned models see the bare linearized input,
// matching their training data; the prompted settings wrap it in
// instructions.
const (
	ZeroShot  = "zero_shot"
	FewShot   = "few_shot"
	Finetuned = "finetuned"
)

func ValidSetting(setting string) bool {
	return setting == ZeroShot || setting == FewShot || setting == Finetuned
}

const zeroShotPreamble = "document:\n" +
	"You are an API documentation expert.\n" +
	"Generate a concise, human-readable description.\n\n"

const fewShotPreamble = "You are an expert API documentation generator.\n" +
	"Given API metadata, write a concise and accurate description.\n\n"

type exemplar struct {
	input  string
	output string
}

// Fixed exemplars shared by every few-shot request, so prompted runs are
// comparable across models.
var fewShotExemplars = []exemplar{
	{
		input:  "Method: GET | Path: /users | Summary: Get users | Parameter: page (integer)",
		output: "Specifies the page number of results to retrieve.",
	},
	{
		input:  "Method: GET | Path: /users | Summary: Get users | Parameter: pageSize (integer)",
		output: "Defines the number of user records returned per page.",
	},
	{
		input:  "Method: POST | Path: /login | Summary: User login | Parameter: username (string)",
		output: "The username used to authenticate the user.",
	},
	{
		input:  "Method: POST | Path: /login | Summary: User login | Parameter: password (string)",
		output: "The password associated with the user's account.",
	},
	{
		input:  "Method: GET | Path: /articles | Summary: Search articles | Parameter: query (string)",
		output: "The search keyword used to filter articles.",
	},
}

// BuildPrompt renders the full prompt for one test input under the given
// setting. The input text is passed through verbatim.
func BuildPrompt(setting, inputText string) (string, error) {
	switch setting {
	case ZeroShot:
		return zeroShotPreamble + inputText, nil
	case FewShot:
		var prompt strings.Builder
		prompt.WriteString(fewShotPreamble)
		for _, ex := range fewShotExemplars {
			fmt.Fprintf(&prompt, "Input:\n%s\nOutput:\n%s\n\n", ex.input, ex.output)
		}
		fmt.Fprintf(&prompt, "Input:\n%s\nOutput:\n", inputText)
		return prompt.String(), nil
	case Finetuned:
		return inputText, nil
	default:
		return "", fmt.Errorf("unknown generation setting '%v'", setting)
	}
}
