package flowtable

import (
	"testing"
	"time"

	"github.com/rlane/indigo/ofp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryMatchesFiltersDeleteMarked(t *testing.T) {
	e := Create(Config{MaxEntries: 4})
	entry, err := e.Add(1, addMsg(1, 100), time.Now())
	require.NoError(t, err)
	e.MarkDeleted(entry, ofp.FlowReasonDelete)

	q := &Query{Mode: ModeCookieOnly, Table: ofp.TableAll}
	assert.False(t, q.matches(entry))
}

func TestQueryMatchesCookieMask(t *testing.T) {
	e := Create(Config{MaxEntries: 4})
	msg := addMsg(1, 100)
	msg.Cookie = 0xaabb
	entry, err := e.Add(1, msg, time.Now())
	require.NoError(t, err)

	q := &Query{Mode: ModeCookieOnly, Table: ofp.TableAll, Cookie: 0xaa00, CookieMask: 0xff00}
	assert.True(t, q.matches(entry))

	q2 := &Query{Mode: ModeCookieOnly, Table: ofp.TableAll, Cookie: 0x1100, CookieMask: 0xff00}
	assert.False(t, q2.matches(entry))
}

func TestQueryMatchesTableFilter(t *testing.T) {
	e := Create(Config{MaxEntries: 4})
	msg := addMsg(1, 100)
	msg.Table = 3
	entry, err := e.Add(1, msg, time.Now())
	require.NoError(t, err)

	q := &Query{Mode: ModeCookieOnly, Table: 3}
	assert.True(t, q.matches(entry))

	q2 := &Query{Mode: ModeCookieOnly, Table: 4}
	assert.False(t, q2.matches(entry))

	qAll := &Query{Mode: ModeCookieOnly, Table: ofp.TableAll}
	assert.True(t, qAll.matches(entry))
}

func TestQueryMatchesPriorityCheck(t *testing.T) {
	e := Create(Config{MaxEntries: 4})
	entry, err := e.Add(1, addMsg(1, 50), time.Now())
	require.NoError(t, err)

	q := &Query{Mode: ModeCookieOnly, Table: ofp.TableAll, CheckPriority: true, Priority: 50}
	assert.True(t, q.matches(entry))

	q2 := &Query{Mode: ModeCookieOnly, Table: ofp.TableAll, CheckPriority: true, Priority: 51}
	assert.False(t, q2.matches(entry))
}

func TestQueryMatchesUnknownModeFails(t *testing.T) {
	e := Create(Config{MaxEntries: 4})
	entry, err := e.Add(1, addMsg(1, 50), time.Now())
	require.NoError(t, err)

	q := &Query{Mode: Mode(99), Table: ofp.TableAll}
	assert.False(t, q.matches(entry))
}

func TestEngineFirstMatchUnknownModeIsNotFound(t *testing.T) {
	e := Create(Config{MaxEntries: 4})
	_, err := e.Add(1, addMsg(1, 50), time.Now())
	require.NoError(t, err)

	_, err = e.FirstMatch(&Query{Mode: Mode(99)})
	require.Error(t, err)
}

func TestQueryMatchesOutPortFilter(t *testing.T) {
	e := Create(Config{MaxEntries: 4})
	entry, err := e.Add(1, addMsg(1, 50), time.Now())
	require.NoError(t, err)

	q := &Query{Match: matchFor(1), Mode: ModeStrict, Table: ofp.TableAll, OutPort: 1}
	assert.True(t, q.matches(entry))

	q2 := &Query{Match: matchFor(1), Mode: ModeStrict, Table: ofp.TableAll, OutPort: 99}
	assert.False(t, q2.matches(entry))
}

func TestQueryMatchesCookieOnlyIgnoresOutPort(t *testing.T) {
	e := Create(Config{MaxEntries: 4})
	entry, err := e.Add(1, addMsg(1, 50), time.Now())
	require.NoError(t, err)

	q := &Query{Mode: ModeCookieOnly, Table: ofp.TableAll, OutPort: 99}
	assert.True(t, q.matches(entry), "COOKIE_ONLY has no match clause to attach an out-port check to")
}
