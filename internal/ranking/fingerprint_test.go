package ranking

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestFingerprintIgnoresMapKeyOrder(t *testing.T) {
	a := ProfileSnapshot{
		BasicInformation: map[string]any{"grade": "11", "role": "student", "school": map[string]any{"z": 1, "a": 2}},
		Interests:        []string{"robotics"},
		Goals:            []string{"college"},
	}
	b := ProfileSnapshot{
		BasicInformation: map[string]any{"school": map[string]any{"a": 2, "z": 1}, "role": "student", "grade": "11"},
		Interests:        []string{"robotics"},
		Goals:            []string{"college"},
	}
	fa, err := ComputeFingerprint(a, []string{"x1", "x2"})
	require.NoError(t, err)
	fb, err := ComputeFingerprint(b, []string{"x2", "x1"})
	require.NoError(t, err)
	require.Equal(t, fa, fb)
	require.Len(t, fa.String(), 64)
}

func TestFingerprintSensitivity(t *testing.T) {
	base := ProfileSnapshot{
		BasicInformation: map[string]any{"grade": "11"},
		Interests:        []string{"robotics", "chess"},
		Goals:            []string{"college"},
		OtherGoals:       strPtr("scholarship"),
	}
	catalog := []string{"x1", "x2"}
	ref, err := ComputeFingerprint(base, catalog)
	require.NoError(t, err)

	variants := map[string]func(p ProfileSnapshot) (ProfileSnapshot, []string){
		"basic_information": func(p ProfileSnapshot) (ProfileSnapshot, []string) {
			p.BasicInformation = map[string]any{"grade": "12"}
			return p, catalog
		},
		"interests order": func(p ProfileSnapshot) (ProfileSnapshot, []string) {
			p.Interests = []string{"chess", "robotics"}
			return p, catalog
		},
		"goals": func(p ProfileSnapshot) (ProfileSnapshot, []string) {
			p.Goals = []string{"college", "internship"}
			return p, catalog
		},
		"other_goals": func(p ProfileSnapshot) (ProfileSnapshot, []string) {
			p.OtherGoals = strPtr("")
			return p, catalog
		},
		"other_goals nil": func(p ProfileSnapshot) (ProfileSnapshot, []string) {
			p.OtherGoals = nil
			return p, catalog
		},
		"catalog membership": func(p ProfileSnapshot) (ProfileSnapshot, []string) {
			return p, []string{"x1", "x2", "x3"}
		},
	}
	for name, mutate := range variants {
		t.Run(name, func(t *testing.T) {
			p, ids := mutate(base)
			got, err := ComputeFingerprint(p, ids)
			require.NoError(t, err)
			require.NotEqual(t, ref, got)
		})
	}
}

func TestFingerprintNilAndEmptyCollectionsMatch(t *testing.T) {
	a, err := ComputeFingerprint(ProfileSnapshot{}, nil)
	require.NoError(t, err)
	b, err := ComputeFingerprint(SnapshotOf(nil), []string{})
	require.NoError(t, err)
	require.Equal(t, a, b)
}
