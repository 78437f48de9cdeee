package embedding

import (
	"strings"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/model"
)

// PostText builds the text embedded for a post: title, item name, description,
// location and category, lower-cased and joined by single spaces. Empty fields
// are left out.
func PostText(post *model.Post) string {
	fields := []string{post.Title, post.ItemName, post.Description, post.Location, post.Category}

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Join(strings.Fields(f), " ")
		if f != "" {
			parts = append(parts, f)
		}
	}

	return strings.ToLower(strings.Join(parts, " "))
}
