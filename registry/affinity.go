//go:build linux

package registry

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/packetd/dabba/internal/errs"
)

// FormatAffinity renders a CPU list the way the original dabba daemon
// does: ascending, comma-separated, consecutive runs collapsed to
// "first-last" (e.g. "0,2-4,7"). Grounded on
// original_source/dabbad/thread.c's cpu_affinity2str.
func FormatAffinity(cpus []int) string {
	if len(cpus) == 0 {
		return ""
	}
	sorted := append([]int(nil), cpus...)
	sort.Ints(sorted)

	var b strings.Builder
	i := 0
	for i < len(sorted) {
		start := sorted[i]
		j := i
		for j+1 < len(sorted) && sorted[j+1] == sorted[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		if j == i {
			fmt.Fprintf(&b, "%d", start)
		} else {
			fmt.Fprintf(&b, "%d-%d", start, sorted[j])
		}
		i = j + 1
	}
	return b.String()
}

// ParseAffinity parses the same grammar FormatAffinity emits, plus a
// ":stride" suffix on a range (e.g. "0-10:2" for every other CPU from
// 0 to 10), matching str2cpu_affinity. Returns errs.InvalidArgument on
// any malformed token or inverted range.
func ParseAffinity(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}

	seen := make(map[int]struct{})
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return nil, errs.New(errs.InvalidArgument, "registry.ParseAffinity", fmt.Errorf("empty token in %q", s))
		}

		rangePart := tok
		stride := 1
		if idx := strings.IndexByte(tok, ':'); idx >= 0 {
			rangePart = tok[:idx]
			v, err := strconv.Atoi(tok[idx+1:])
			if err != nil || v <= 0 {
				return nil, errs.New(errs.InvalidArgument, "registry.ParseAffinity", fmt.Errorf("bad stride in %q", tok))
			}
			stride = v
		}

		start, end := rangePart, rangePart
		if idx := strings.IndexByte(rangePart, '-'); idx >= 0 {
			start, end = rangePart[:idx], rangePart[idx+1:]
		}

		a, err := strconv.Atoi(start)
		if err != nil || a < 0 {
			return nil, errs.New(errs.InvalidArgument, "registry.ParseAffinity", fmt.Errorf("bad cpu number in %q", tok))
		}
		b, err := strconv.Atoi(end)
		if err != nil || b < 0 {
			return nil, errs.New(errs.InvalidArgument, "registry.ParseAffinity", fmt.Errorf("bad cpu number in %q", tok))
		}
		if a > b {
			return nil, errs.New(errs.InvalidArgument, "registry.ParseAffinity", fmt.Errorf("inverted range in %q", tok))
		}

		for cpu := a; cpu <= b; cpu += stride {
			seen[cpu] = struct{}{}
		}
	}

	cpus := make([]int, 0, len(seen))
	for cpu := range seen {
		cpus = append(cpus, cpu)
	}
	sort.Ints(cpus)
	return cpus, nil
}
