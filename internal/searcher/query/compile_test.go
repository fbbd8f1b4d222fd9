package query_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/contracts"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/internal/store/memory"
	apperrors "github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/errors"
)

func build(t *testing.T, s query.Search, opts query.Options) query.Predicate {
	t.Helper()
	c, err := query.Build(s, 2000, opts)
	require.NoError(t, err)
	return c.Predicate
}

func codes(p query.Predicate, rows []contracts.Contract) []string {
	var out []string
	for _, r := range rows {
		if memory.Matches(p, r) {
			out = append(out, r.ContractCode)
		}
	}
	return out
}

var fixture = []contracts.Contract{
	{ContractCode: "C1", Title: "Construcción de hospital general", SupplierName: "Constructora Norte SA", TaxID: "CNO010101AB1", InstitutionAcronym: "IMSS", InstitutionName: "Instituto Mexicano del Seguro Social"},
	{ContractCode: "C2", Title: "Hospital regional", Description: "Obra de construcción en Mérida", SupplierName: "Edifica", InstitutionAcronym: "ISSSTE"},
	{ContractCode: "C3", Title: "Construcción de escuela", SupplierName: "Hospitalaria SC", InstitutionAcronym: "SEP"},
	{ContractCode: "C4", Title: "Servicio de limpieza", Description: "Referencia abc123 en expediente", SupplierName: "Limpia", TaxID: "ABC123"},
	{ContractCode: "C5", Title: "Consultoría", Description: "García. Chávez y asociados", SupplierName: "GC"},
	{ContractCode: "C6", Title: "Chávez García consultores", SupplierName: "CG"},
}

func TestTaxIDScopeNeverMatchesSubstrings(t *testing.T) {
	rows := []contracts.Contract{
		{ContractCode: "T1", TaxID: "GOMA800101AB3"},
		{ContractCode: "T2", Description: "pago a GOMA800101AB3 por servicios"},
		{ContractCode: "T3", TaxID: "XGOMA800101AB3"},
	}
	p := build(t, query.Search{Text: "goma800101ab3", Scope: "rfc"}, query.Options{})

	assert.Equal(t, `(= tax_id "GOMA800101AB3")`, p.String())
	assert.Equal(t, []string{"T1"}, codes(p, rows))
}

func TestTaxIDShapeIsValidated(t *testing.T) {
	_, err := query.Build(query.Search{Text: "abc123", Scope: "tax_id"}, 2000, query.Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	c, err := query.Build(query.Search{Text: `"G&M-800101-AB3"`, Scope: "tax_id"}, 2000, query.Options{})
	require.NoError(t, err)
	assert.Equal(t, "G&M800101AB3", c.Text)
}

func TestSimpleQueryRequiresEveryWord(t *testing.T) {
	p := build(t, query.Search{Text: "hospital construcción", Scope: "all"}, query.Options{})

	// C3 matches "hospital" only through the supplier name and
	// "construccion" through the title: different columns are fine.
	assert.Equal(t, []string{"C1", "C2", "C3"}, codes(p, fixture))

	p = build(t, query.Search{Text: "hospital construcción", Scope: "title"}, query.Options{})
	assert.Equal(t, []string{"C1"}, codes(p, fixture))
}

func TestMatchingIsAccentInsensitive(t *testing.T) {
	p := build(t, query.Search{Text: "merida", Scope: "description"}, query.Options{})
	assert.Equal(t, []string{"C2"}, codes(p, fixture))

	p = build(t, query.Search{Text: "CONSTRUCCION", Scope: "titulo"}, query.Options{})
	assert.Equal(t, []string{"C1", "C3"}, codes(p, fixture))
}

func TestPhraseRequiresAdjacency(t *testing.T) {
	p := build(t, query.Search{Text: `"garcia chavez"`}, query.Options{})
	assert.Equal(t, []string{"C5"}, codes(p, fixture), "C6 has both words but not adjacent in that order")
}

func TestExclusionAppliesToEveryColumn(t *testing.T) {
	p := build(t, query.Search{Text: "construccion -hospital"}, query.Options{})
	// C3 has "Hospitalaria" in the supplier column, so it is excluded too.
	assert.Empty(t, codes(p, fixture))

	p = build(t, query.Search{Text: "construccion -hospital", Scope: "title"}, query.Options{})
	assert.Equal(t, []string{"C3"}, codes(p, fixture))
}

func TestORGroup(t *testing.T) {
	p := build(t, query.Search{Text: "limpieza OR escuela", Scope: "title"}, query.Options{})
	assert.Equal(t, []string{"C3", "C4"}, codes(p, fixture))

	p = build(t, query.Search{Text: "hospital general OR limpieza", Scope: "title"}, query.Options{})
	assert.Equal(t, []string{"C1", "C4"}, codes(p, fixture), "multi-word members need all their words")
}

func TestFiltersAreANDed(t *testing.T) {
	p := build(t, query.Search{
		Text:    "construccion",
		Filters: query.Filters{Institutions: []string{"IMSS", "SEP"}},
	}, query.Options{})
	assert.Equal(t, []string{"C1", "C3"}, codes(p, fixture))
}

func TestFieldsOverrideUnionsScopes(t *testing.T) {
	c, err := query.Build(query.Search{Text: "hospital", Scope: "description", Fields: []string{"title", "supplier"}}, 2000, query.Options{})
	require.NoError(t, err)
	assert.Equal(t, contracts.ScopeSet{contracts.ScopeTitle, contracts.ScopeSupplier}, c.Scopes)
	assert.Equal(t, []string{"C1", "C2", "C3"}, codes(c.Predicate, fixture))
}

func TestFullTextUsesWordsForPlainTerms(t *testing.T) {
	p := build(t, query.Search{Text: "hospital covid-19", Scope: "title"}, query.Options{TextMatch: query.TextMatchFullText})
	assert.Equal(t,
		`(and (or (word title "hospital") (word title_alt "hospital")) (or (contains title "covid-19") (contains title_alt "covid-19")))`,
		p.String())

	p = build(t, query.Search{Text: "hospital", Scope: "supplier"}, query.Options{TextMatch: query.TextMatchFullText})
	assert.Empty(t, codes(p, fixture), "whole words do not match inside Hospitalaria")
}

func TestInvalidScopeDefaultsToAll(t *testing.T) {
	c, err := query.Build(query.Search{Text: "merida", Scope: "bogus"}, 2000, query.Options{})
	require.NoError(t, err)
	assert.Equal(t, contracts.ScopeAll, c.Scope)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		err  bool
	}{
		{name: "empty", text: "   ", err: true},
		{name: "too long", text: string(make([]rune, 2001)), err: true},
		{name: "only symbols", text: "$%^;", err: true},
		{name: "control characters are scrubbed", text: "obra\x00;DROP\ttable", want: "obraDROP table"},
		{name: "accents survive", text: "Construcción   de  Mérida", want: "Construcción de Mérida"},
		{name: "operators survive", text: `"a b" -(c) OR d_e`, want: `"a b" -(c) OR d_e`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := query.Validate(tt.text, contracts.ScopeSet{contracts.ScopeAll}, 2000)
			if tt.err {
				require.Error(t, err)
				assert.Equal(t, 400, apperrors.HTTPStatusCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryWithoutTermsIsRejected(t *testing.T) {
	for _, text := range []string{"- -- AND", "-acme", "-acme -norte", `- "" -acme`} {
		t.Run(text, func(t *testing.T) {
			_, err := query.Build(query.Search{Text: text}, 2000, query.Options{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrValidation))
		})
	}
}

func TestExclusionNeedsAPositiveTerm(t *testing.T) {
	for _, text := range []string{"hospital -acme", `"ciudad de mexico" -acme`, "norte OR sur -acme"} {
		c, err := query.Build(query.Search{Text: text}, 2000, query.Options{})
		require.NoError(t, err, text)
		assert.Contains(t, c.Predicate.String(), "(not ", text)
	}
}
