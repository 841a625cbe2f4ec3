package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caddl-lab-desk/internal/domain"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	keys := c.Keys()
	require.Len(t, keys, 8)
	assert.Equal(t, domain.CategoryKey("clinicalPathology"), keys[0])
	assert.True(t, c.HasCategory("milkExamination"))
	assert.False(t, c.HasCategory("virology"))

	assert.Equal(t, "BIOCHEMISTRY", c.Label("biochemistry"))
	assert.Equal(t, "VIROLOGY", c.Label("virology"))

	assert.Equal(t, []string{"LFT", "RFT", "ELECTROLYTES", "MINERALS"}, c.SubCategories("biochemistry"))
	assert.Empty(t, c.SubCategories("parasitology"))
}

func TestDefaultCatalogLFTPanel(t *testing.T) {
	c := Default()
	set, err := c.NewResultSet().AddBulk("biochemistry", c.Tests(), domain.BySubCategory("LFT"))
	require.NoError(t, err)

	entries := set["biochemistry"]
	require.Len(t, entries, 7)
	assert.Equal(t, "SGOT/AST", entries[0].TestName)
	assert.Equal(t, "Globulin", entries[6].TestName)
	for _, e := range entries {
		assert.Empty(t, e.ResultValue)
	}
	for _, k := range c.Keys() {
		assert.NotNil(t, set[k], "category %s missing", k)
	}
}

func TestLookup(t *testing.T) {
	c := Default()

	def, ok := c.Lookup("clinicalPathology", "hemoglobin (hb)")
	require.True(t, ok)
	assert.Equal(t, "8.0 - 15.0", def.NormalRange)
	assert.Equal(t, "g/dL", def.Unit)

	_, ok = c.Lookup("biochemistry", "Hemoglobin (Hb)")
	assert.False(t, ok)

	def.NormalRange = "changed"
	again, _ := c.Lookup("clinicalPathology", "Hemoglobin (Hb)")
	assert.Equal(t, "8.0 - 15.0", again.NormalRange)
}

func TestForCategoryOrder(t *testing.T) {
	defs := Default().ForCategory("parasitology")
	require.Len(t, defs, 4)
	assert.Equal(t, "Fecal Exam (Direct)", defs[0].Name)
	assert.Equal(t, "Skin Scraping (Mites)", defs[3].Name)
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{
			name:  "no categories",
			doc:   "tests: []\n",
			field: "categories",
		},
		{
			name:  "bad key",
			doc:   "categories:\n  - key: Clinical Pathology\n",
			field: "categories.key",
		},
		{
			name:  "duplicate key",
			doc:   "categories:\n  - key: serology\n  - key: serology\n",
			field: "categories.key",
		},
		{
			name:  "unknown category",
			doc:   "categories:\n  - key: serology\ntests:\n  - {category: virology, name: PCR}\n",
			field: "tests.category",
		},
		{
			name:  "missing name",
			doc:   "categories:\n  - key: serology\ntests:\n  - {category: serology, name: \" \"}\n",
			field: "tests.name",
		},
		{
			name:  "duplicate test",
			doc:   "categories:\n  - key: serology\ntests:\n  - {category: serology, name: RBPT}\n  - {category: serology, name: rbpt}\n",
			field: "tests.name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			var ve *domain.ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	_, err := Parse([]byte("categories: [unclosed"))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	doc := `categories:
  - key: virology
    label: VIROLOGY
  - key: parasitology
tests:
  - {category: virology, name: FMD Antigen ELISA, unit: "-", normal_range: Negative}
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []domain.CategoryKey{"virology", "parasitology"}, c.Keys())
	assert.Equal(t, "PARASITOLOGY", c.Label("parasitology"))
	assert.Len(t, c.Tests(), 1)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	def, err := Load("")
	require.NoError(t, err)
	assert.Len(t, def.Keys(), 8)
}
