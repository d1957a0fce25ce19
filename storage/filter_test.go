package storage

import (
	"testing"

	"github.com/poiesic/codesense/core"
	"github.com/stretchr/testify/assert"
)

func TestFilterMatch(t *testing.T) {
	md := core.Metadata{
		core.MetaType: core.String("function"),
		core.MetaPath: core.String("query/parser.go"),
		"lines":       core.Int(12),
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"nil matches everything", nil, true},
		{"equals hit", Equals(core.MetaType, core.String("function")), true},
		{"equals miss", Equals(core.MetaType, core.String("class")), false},
		{"equals is kind sensitive", Equals("lines", core.String("12")), false},
		{"equals absent key", Equals("missing", core.String("x")), false},
		{"prefix hit", HasPrefix(core.MetaPath, "query/"), true},
		{"prefix miss", HasPrefix(core.MetaPath, "storage/"), false},
		{"prefix over int text", HasPrefix("lines", "1"), true},
		{"empty and", And(), true},
		{"empty or", Or(), false},
		{"and", And(Equals(core.MetaType, core.String("function")), HasPrefix(core.MetaPath, "query")), true},
		{"and short circuits false", And(Equals(core.MetaType, core.String("function")), HasPrefix(core.MetaPath, "x")), false},
		{"or", Or(Equals(core.MetaType, core.String("class")), Equals("lines", core.Int(12))), true},
		{"not", Not(Equals(core.MetaType, core.String("class"))), true},
		{"not of nil", Not(nil), false},
		{"match func", MatchFunc(func(md core.Metadata) bool { return md["lines"].I == 12 }), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.filter, md))
		})
	}
}

func TestEqualityGroups(t *testing.T) {
	fn := EqualsFilter{Key: core.MetaType, Value: core.String("function")}
	cls := EqualsFilter{Key: core.MetaType, Value: core.String("class")}
	lang := EqualsFilter{Key: core.MetaLanguage, Value: core.String("go")}

	t.Run("single equality", func(t *testing.T) {
		assert.Equal(t, [][]EqualsFilter{{fn}}, EqualityGroups(fn))
	})

	t.Run("conjunction of disjunctions", func(t *testing.T) {
		f := And(Or(fn, cls), lang, HasPrefix(core.MetaPath, "x"))
		assert.Equal(t, [][]EqualsFilter{{fn, cls}, {lang}}, EqualityGroups(f))
	})

	t.Run("mixed disjunction gives no hint", func(t *testing.T) {
		assert.Empty(t, EqualityGroups(Or(fn, HasPrefix(core.MetaPath, "x"))))
	})

	t.Run("negation gives no hint", func(t *testing.T) {
		assert.Empty(t, EqualityGroups(Not(fn)))
	})

	t.Run("opaque filters give no hint", func(t *testing.T) {
		assert.Empty(t, EqualityGroups(nil))
		assert.Empty(t, EqualityGroups(MatchFunc(func(core.Metadata) bool { return true })))
	})
}
