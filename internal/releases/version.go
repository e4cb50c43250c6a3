package releases

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// isNewer reports whether tag is a newer release than current. A current
// version that is not semver (a dev build, a commit hash) counts as older
// than any release.
func isNewer(current, tag string) (bool, error) {
	latest, err := semver.NewVersion(tag)
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrInvalidVersion, tag)
	}

	cur, err := semver.NewVersion(current)
	if err != nil {
		return true, nil
	}

	return latest.GreaterThan(cur), nil
}
