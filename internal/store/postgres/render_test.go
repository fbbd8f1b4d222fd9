package postgres

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/textnorm"
)

func TestRenderTaxIDEquality(t *testing.T) {
	c, err := query.Build(query.Search{Text: "GOMA800101AB3", Scope: "tax_id"}, 2000, query.Options{})
	require.NoError(t, err)

	r := newRenderer(true)
	assert.Equal(t, "tax_id = $1", r.where(c.Predicate))
	assert.Equal(t, []any{"GOMA800101AB3"}, r.args)
}

func TestRenderContainsUsesFoldedLike(t *testing.T) {
	p := query.Match(contracts.ColumnTitle, query.MatchContains, "100%_seguro")

	r := newRenderer(true)
	assert.Equal(t, "lower(unaccent(coalesce(title, ''))) LIKE $1", r.where(p))
	assert.Equal(t, []any{`%100\%\_seguro%`}, r.args)
}

func TestRenderPhraseNormalizesColumn(t *testing.T) {
	p := query.Match(contracts.ColumnDescription, query.MatchPhrase, "garcia chavez")

	r := newRenderer(true)
	assert.Equal(t,
		"btrim(regexp_replace(lower(unaccent(coalesce(description, ''))), '[^[:alnum:]]+', ' ', 'g')) LIKE $1",
		r.where(p))
	assert.Equal(t, []any{"%garcia chavez%"}, r.args)
}

func TestRenderWordUsesFullText(t *testing.T) {
	p := query.Match(contracts.ColumnTitle, query.MatchWord, "hospital")

	r := newRenderer(true)
	assert.Equal(t,
		"to_tsvector('simple', lower(unaccent(coalesce(title, '')))) @@ plainto_tsquery('simple', $1)",
		r.where(p))
}

func TestRenderWithoutUnaccentFallsBackToTranslate(t *testing.T) {
	p := query.Match(contracts.ColumnTitle, query.MatchContains, "obra")

	r := newRenderer(false)
	assert.Contains(t, r.where(p), "lower(translate(coalesce(title, ''), '"+accentFrom+"', '"+accentTo+"'))")
	assert.Equal(t, len([]rune(accentFrom)), len([]rune(accentTo)))
}

func TestRenderBooleanStructure(t *testing.T) {
	p := query.And(
		query.Or(
			query.Match(contracts.ColumnTitle, query.MatchContains, "a"),
			query.Match(contracts.ColumnDescription, query.MatchContains, "a"),
		),
		query.Not(query.Match(contracts.ColumnTitle, query.MatchContains, "b")),
		query.In(contracts.ColumnSourceYear, []string{"2023", "2024"}),
	)

	r := newRenderer(true)
	assert.Equal(t,
		"((lower(unaccent(coalesce(title, ''))) LIKE $1 OR lower(unaccent(coalesce(description, ''))) LIKE $2)"+
			" AND NOT coalesce(lower(unaccent(coalesce(title, ''))) LIKE $3, FALSE)"+
			" AND source_year = ANY($4))",
		r.where(p))
	require.Len(t, r.args, 4)
	assert.Equal(t, pq.Array([]string{"2023", "2024"}), r.args[3])
}

func TestRenderTrueAndFalse(t *testing.T) {
	assert.Equal(t, "TRUE", newRenderer(true).where(query.True()))
	assert.Equal(t, "FALSE", newRenderer(true).where(query.False()))
}

func TestSupplierKeyBindsSentinelAndSuffix(t *testing.T) {
	r := newRenderer(true)
	expr := r.supplierKey()

	assert.Contains(t, expr, "'rfc:' || upper(btrim(coalesce(tax_id, '')))")
	assert.Contains(t, expr, "'name:' || coalesce(nullif(regexp_replace(")
	assert.ElementsMatch(t, []any{contracts.GenericTaxID, textnorm.CorporateSuffixPattern}, r.args)
}

func TestOrderBy(t *testing.T) {
	assert.Equal(t, "ORDER BY id", orderBy(contracts.SortNone))
	assert.Contains(t, orderBy(contracts.SortAmountDesc), "DESC NULLS LAST, contract_code, id")
	assert.Contains(t, orderBy(contracts.SortAmountAsc), "ASC NULLS FIRST, contract_code, id")
	assert.Equal(t, "ORDER BY start_date DESC NULLS LAST, contract_code, id", orderBy(contracts.SortDateDesc))
	assert.Equal(t, "ORDER BY start_date ASC NULLS FIRST, contract_code, id", orderBy(contracts.SortDateAsc))
}

func TestUnknownColumnPanics(t *testing.T) {
	assert.Panics(t, func() {
		newRenderer(true).where(query.Equals(contracts.Column("id; DROP TABLE contracts"), "x"))
	})
}

func TestStoreLogsWithComponent(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	s := New(nil)
	s.logger.Info("schema ready")
	assert.Contains(t, buf.String(), `"component":"contract-store"`)
}
