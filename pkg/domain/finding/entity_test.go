package finding_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vulnscan/api/pkg/domain/finding"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input    string
		expected finding.Severity
	}{
		{"CRITICAL", finding.SeverityCritical},
		{"critical", finding.SeverityCritical},
		{" High ", finding.SeverityHigh},
		{"medium", finding.SeverityMedium},
		{"LOW", finding.SeverityLow},
		{"info", finding.SeverityInfo},
		{"", finding.SeverityInfo},
		{"catastrophic", finding.SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, finding.ParseSeverity(tt.input))
		})
	}
}

func TestSeverity_AtLeast(t *testing.T) {
	assert.True(t, finding.SeverityCritical.AtLeast(finding.SeverityHigh))
	assert.True(t, finding.SeverityHigh.AtLeast(finding.SeverityHigh))
	assert.False(t, finding.SeverityMedium.AtLeast(finding.SeverityHigh))
	assert.True(t, finding.SeverityInfo.AtLeast(finding.SeverityInfo))
	assert.False(t, finding.SeverityInfo.AtLeast(finding.SeverityLow))
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected finding.Category
		known    bool
	}{
		{"exact match", "SSL_TLS", finding.CategorySSLTLS, true},
		{"lowercase", "web", finding.CategoryWeb, true},
		{"whitespace", "  dns ", finding.CategoryDNS, true},
		{"other is known", "OTHER", finding.CategoryOther, true},
		{"unknown maps to other", "quantum", finding.CategoryOther, false},
		{"empty maps to other", "", finding.CategoryOther, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, known := finding.ParseCategory(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.known, known)
		})
	}
}

func TestFinding_Fingerprint(t *testing.T) {
	base := finding.Finding{
		Title:             "Outdated nginx",
		Category:          finding.CategoryOutdatedSoftware,
		AffectedComponent: "nginx/1.14.0",
	}

	t.Run("stable for identical content", func(t *testing.T) {
		other := base
		other.Description = "different description"
		other.Severity = finding.SeverityCritical
		assert.Equal(t, base.Fingerprint(), other.Fingerprint())
	})

	t.Run("distinguishes component", func(t *testing.T) {
		other := base
		other.AffectedComponent = "nginx/1.18.0"
		assert.NotEqual(t, base.Fingerprint(), other.Fingerprint())
	})

	t.Run("distinguishes title", func(t *testing.T) {
		other := base
		other.Title = "Outdated apache"
		assert.NotEqual(t, base.Fingerprint(), other.Fingerprint())
	})
}
