package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "credrelay/pkg/domain-errors"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDeriveOverAge(t *testing.T) {
	cred := Credential{Claims: Claims{ClaimDOB: "2000-06-15"}}
	attrs := ResolveAttributes([]string{AttrOver18})

	cases := []struct {
		name string
		now  string
		want bool
	}{
		{"day before 18th birthday", "2018-06-14", false},
		{"exact 18th birthday is inclusive", "2018-06-15", true},
		{"day after 18th birthday", "2018-06-16", true},
		{"earlier month same year", "2018-05-20", false},
		{"later month same year", "2018-07-01", true},
		{"well past threshold", "2026-01-01", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			disclosed, err := Derive(cred, attrs, date(tc.now))
			require.NoError(t, err)
			assert.Equal(t, tc.want, disclosed[AttrOver18])
		})
	}
}

func TestDeriveLastN(t *testing.T) {
	attrs := ResolveAttributes([]string{AttrPANLast4})

	t.Run("long identifier keeps last four", func(t *testing.T) {
		cred := Credential{Claims: Claims{ClaimPAN: "ABCDE1234F"}}
		disclosed, err := Derive(cred, attrs, time.Now())
		require.NoError(t, err)
		assert.Equal(t, "234F", disclosed[AttrPANLast4])
	})

	t.Run("short identifier returned whole, no padding", func(t *testing.T) {
		cred := Credential{Claims: Claims{ClaimPAN: "AB"}}
		disclosed, err := Derive(cred, attrs, time.Now())
		require.NoError(t, err)
		assert.Equal(t, "AB", disclosed[AttrPANLast4])
	})
}

func TestDerivePassThrough(t *testing.T) {
	cred := Credential{Claims: Claims{"name": "John Doe"}}
	disclosed, err := Derive(cred, ResolveAttributes([]string{"name"}), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "John Doe", disclosed["name"])
}

func TestDeriveMissingClaimAbortsWhole(t *testing.T) {
	cred := Credential{Claims: Claims{"name": "John Doe"}}
	attrs := ResolveAttributes([]string{"name", "nickname"})

	disclosed, err := Derive(cred, attrs, time.Now())
	require.Error(t, err)
	assert.Equal(t, derrors.CodeUnsupportedAttribute, derrors.CodeOf(err))
	assert.Contains(t, err.Error(), "nickname")
	assert.Nil(t, disclosed, "no partial disclosure on failure")
}

func TestDeriveMalformedDOB(t *testing.T) {
	cred := Credential{Claims: Claims{ClaimDOB: "not-a-date"}}
	_, err := Derive(cred, ResolveAttributes([]string{AttrOver18}), time.Now())
	require.Error(t, err)
	assert.Equal(t, derrors.CodeUnsupportedAttribute, derrors.CodeOf(err))
}

func TestResolveAttribute(t *testing.T) {
	over := ResolveAttribute(AttrOver18)
	assert.Equal(t, KindOverAge, over.Kind)
	assert.Equal(t, ClaimDOB, over.SourceClaim)
	assert.Equal(t, 18, over.Threshold)

	last := ResolveAttribute(AttrPANLast4)
	assert.Equal(t, KindLastN, last.Kind)
	assert.Equal(t, 4, last.N)

	other := ResolveAttribute("email")
	assert.Equal(t, KindPassThrough, other.Kind)
	assert.Equal(t, "email", other.SourceClaim)
}

func TestSatisfiableBy(t *testing.T) {
	cred := Credential{Claims: Claims{ClaimDOB: "1990-01-01"}}
	assert.True(t, ResolveAttribute(AttrOver18).SatisfiableBy(cred))
	assert.False(t, ResolveAttribute(AttrPANLast4).SatisfiableBy(cred))
}
