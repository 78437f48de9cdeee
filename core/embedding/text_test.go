package embedding

import (
	"testing"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/model"
	"github.com/stretchr/testify/assert"
)

func TestPostText(t *testing.T) {
	t.Run("All fields are joined lower case", func(t *testing.T) {
		post := &model.Post{
			Title:       "Lost Wallet",
			ItemName:    "Wallet",
			Description: "Black  leather\nwallet",
			Location:    "Library",
			Category:    "Accessories",
		}
		assert.Equal(t, "lost wallet wallet black leather wallet library accessories", PostText(post))
	})

	t.Run("Empty fields are skipped", func(t *testing.T) {
		post := &model.Post{Title: "Ví tiền", Location: "  "}
		assert.Equal(t, "ví tiền", PostText(post))
	})

	t.Run("Empty post gives empty text", func(t *testing.T) {
		assert.Equal(t, "", PostText(&model.Post{}))
	})
}
