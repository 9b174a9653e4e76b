package synclist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNegotiate(t *testing.T) {
	local := LocalFeatures()

	tests := []struct {
		name      string
		requested Features
		want      []string
	}{
		{
			name: "all versions match",
			requested: Features{
				FeatureList:    {Version: FeatureListVersion},
				FeatureDislike: {Version: FeatureDislikeVersion},
			},
			want: []string{FeatureList, FeatureDislike},
		},
		{
			name: "version mismatch disables feature",
			requested: Features{
				FeatureList:    {Version: FeatureListVersion + 1},
				FeatureDislike: {Version: FeatureDislikeVersion},
			},
			want: []string{FeatureDislike},
		},
		{
			name:      "absent feature stays unsupported",
			requested: Features{FeatureList: {Version: FeatureListVersion}},
			want:      []string{FeatureList},
		},
		{
			name:      "unknown feature ignored",
			requested: Features{"radio": {Version: 1}},
			want:      nil,
		},
		{
			name:      "empty request",
			requested: Features{},
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := Negotiate(tt.requested, local)

			assert.Len(t, enabled, len(tt.want))
			for _, name := range tt.want {
				assert.True(t, enabled.Enabled(name), "фича %s должна быть включена", name)
			}
		})
	}
}

func TestNegotiateExactMatchOnly(t *testing.T) {
	// Совпадение версии должно быть точным, не "не ниже"
	local := Features{FeatureList: {Version: 2}}
	enabled := Negotiate(Features{FeatureList: {Version: 1}}, local)
	assert.False(t, enabled.Enabled(FeatureList))

	enabled = Negotiate(Features{FeatureList: {Version: 3}}, local)
	assert.False(t, enabled.Enabled(FeatureList))
}

func TestNegotiateCarriesLocalFlags(t *testing.T) {
	local := Features{FeatureList: {Version: 2, SkipSnapshot: true}}
	enabled := Negotiate(Features{FeatureList: {Version: 2}}, local)
	assert.True(t, enabled[FeatureList].SkipSnapshot)
}
