package domainfx

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"github.com/backsnap/backsnap/pkg/domain"
)

func itemsViper(items []map[string]interface{}) *viper.Viper {
	v := viper.New()
	v.Set("items", items)

	return v
}

func TestLoadItems(t *testing.T) {
	v := itemsViper([]map[string]interface{}{
		{"name": "documents", "type": "personal", "sources": []string{"/home/user/docs"}, "exclude": []string{"*.tmp"}},
		{"name": "photos", "type": "personal", "sources": []string{"/home/user/pics"}},
	})

	items, err := LoadItems(v)

	assert.Nil(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, "documents", items[0].Name)
	assert.Equal(t, []string{"*.tmp"}, items[0].Exclude)
}

func TestLoadItems_RejectsDuplicateNamesWithinType(t *testing.T) {
	// Archive paths are keyed by item name, a duplicate would overwrite
	// the other item's manifest entries
	v := itemsViper([]map[string]interface{}{
		{"name": "documents", "type": "personal", "sources": []string{"/home/user/docs"}},
		{"name": "documents", "type": "personal", "sources": []string{"/home/user/other"}},
	})

	_, err := LoadItems(v)

	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoadItems_SameNameDifferentTypeIsAllowed(t *testing.T) {
	v := itemsViper([]map[string]interface{}{
		{"name": "documents", "type": "personal", "sources": []string{"/home/user/docs"}},
		{"name": "documents", "type": "work", "sources": []string{"/srv/docs"}},
	})

	items, err := LoadItems(v)

	assert.Nil(t, err)
	assert.Len(t, items, 2)
}

func TestLoadItems_RejectsIncompleteItems(t *testing.T) {
	for _, items := range [][]map[string]interface{}{
		{{"name": "", "type": "personal", "sources": []string{"/home/user/docs"}}},
		{{"name": "documents", "type": "", "sources": []string{"/home/user/docs"}}},
		{{"name": "documents", "type": "personal"}},
	} {
		_, err := LoadItems(itemsViper(items))
		assert.NotNil(t, err)
	}
}

func TestBackupTypes(t *testing.T) {
	types := BackupTypes([]domain.Item{
		{Name: "documents", Type: "personal"},
		{Name: "photos", Type: "personal"},
		{Name: "projects", Type: "work"},
	})

	assert.Equal(t, []string{"personal", "work"}, types)
}
