package imaging

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const similarityPrompt = `You compare photos of items reported on a university lost and found board.
Decide how likely it is that both photos show the same physical item.
Consider item type, color, brand, shape and distinctive marks. Ignore background and lighting.
Respond with JSON only: {"similarity": <number between 0 and 1>}`

// parseSimilarity extracts the similarity value from a model reply. The reply
// may wrap the JSON object in a markdown code fence or surrounding prose.
func parseSimilarity(reply string) (float64, error) {
	reply = strings.TrimSpace(reply)
	if start := strings.Index(reply, "{"); start >= 0 {
		if end := strings.LastIndex(reply, "}"); end > start {
			reply = reply[start : end+1]
		}
	}

	if gjson.Valid(reply) {
		value := gjson.Get(reply, "similarity")
		if !value.Exists() {
			return 0, fmt.Errorf("reply has no similarity field: %s", reply)
		}
		switch value.Type {
		case gjson.Number:
			return value.Float(), nil
		case gjson.String:
			return strconv.ParseFloat(strings.TrimSpace(value.Str), 64)
		default:
			return 0, fmt.Errorf("similarity is not a number: %s", value.Raw)
		}
	}

	// Plain numeric reply
	similarity, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed similarity reply: %q", reply)
	}
	return similarity, nil
}
