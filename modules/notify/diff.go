package notify

import (
	"bytes"
	"crypto/md5" // #nosec G501
	"encoding/gob"
	"fmt"
	"strings"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

// fingerprint holds the period fields a user would notice changing.
// Times are unix seconds so that the zone a timestamp was decoded in
// does not show up as a change.
type fingerprint struct {
	ID     int64
	Begin  int64
	End    int64
	Title  string
	Rooms  string
	States string
}

func fingerprintOf(p untis.Period) fingerprint {
	states := make([]string, 0, len(p.Is))
	for _, s := range p.Is {
		states = append(states, string(s))
	}

	return fingerprint{
		ID:     p.ID,
		Begin:  p.StartDateTime.Unix(),
		End:    p.EndDateTime.Unix(),
		Title:  p.Title(),
		Rooms:  strings.Join(p.Labels(untis.ElementRoom), ","),
		States: strings.Join(states, ","),
	}
}

// Hash digests a period for fast comparison.
func Hash(p untis.Period) string {
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(fingerprintOf(p)); err != nil {
		return "0x0"
	}

	return fmt.Sprintf("%x", md5.Sum(b.Bytes())) // #nosec G401
}

// Compare reports what appeared in fresh and what vanished from old.
func Compare(fresh, old []untis.Period) ([]untis.Period, []untis.Period) {
	added := Diff(fresh, old)
	removed := Diff(old, fresh)

	return added, removed
}

// Diff keeps the periods of the first list that the second one lacks.
func Diff(periods, others []untis.Period) []untis.Period {
	hashes := make(map[string]bool)
	for _, p := range others {
		hashes[Hash(p)] = true
	}

	var diff []untis.Period
	for _, p := range periods {
		if !hashes[Hash(p)] {
			diff = append(diff, p)
		}
	}

	return diff
}
