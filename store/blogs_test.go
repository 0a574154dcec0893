package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestSearchFilterEmpty(t *testing.T) {
	assert.Equal(t, bson.M{}, searchFilter(""))
}

func TestSearchFilterMatchesTitleAndContent(t *testing.T) {
	filter := searchFilter("golang")

	or, ok := filter["$or"].(bson.A)
	assert.True(t, ok)
	assert.Len(t, or, 2)
}

func TestSearchFilterQuotesRegexMeta(t *testing.T) {
	filter := searchFilter("a.b*c")

	or := filter["$or"].(bson.A)
	title := or[0].(bson.M)["title"].(bson.M)
	assert.Equal(t, `a\.b\*c`, title["$regex"])
	assert.Equal(t, "i", title["$options"])
}
