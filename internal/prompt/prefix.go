// Package prompt assembles generation prompts: a stable, cacheable prefix and
// a budgeted dynamic section carrying arc guidance and thread obligations.
package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Prefix is the stable part of every prompt. It changes only when a content
// version is bumped.
type Prefix struct {
	ID   string
	Text string
}

const storyBible = `You are writing "Dead Letters", a twelve-chapter noir mystery told in close third person.

CHARACTERS
- Jack Halloway: retired detective, sharp and tired, carrying twenty years of convictions he is no longer sure of.
- Sarah Reeves: former partner, now a forensic analyst; loyal to the truth before she is loyal to Jack.
- Victoria: the sender of the black envelopes; patient, precise, always one move ahead.
- Tom Wade: Jack's dead friend and the lab man whose signature sits on the evidence.
- Silas Reed: a fixer with a ledger full of names and nothing left to lose.
- Emily Cross: the first case Jack closed that may have been built on fabricated evidence.
- Judge Chen: the judge who signed the warrants.

WORLD
A rain-soaked harbor city. The harbor precinct, the Grange ledger, the waterfront warehouses and the
courthouse steps recur. Every chapter is a case numbered like 004B: chapter 4, subchapter B.

WRITING RULES
- Keep continuity: honour every open obligation listed in the dynamic section.
- Never resolve a thread silently; show it on the page or leave it open.
- Plant the ending hook in the last paragraph.
- Dialogue is spare. Interiority is Jack's alone.

OUTPUT
Return a single JSON object with title, bridgeText, narrative, chapterSummary and narrativeThreads.
narrativeThreads lists every thread the chapter opens, advances, resolves or fails, with type, description,
status, urgency, characters and dueChapter (0 when open-ended).`

// StablePrefix returns the story bible for a content version. The id changes
// with either counter, so bumping the chapter version retires cached prefixes.
func StablePrefix(staticVersion, chapterVersion int) Prefix {
	text := fmt.Sprintf("[content v%d.%d]\n%s", staticVersion, chapterVersion, storyBible)
	sum := sha256.Sum256([]byte(text))
	return Prefix{
		ID:   fmt.Sprintf("bible-v%d.%d-%s", staticVersion, chapterVersion, hex.EncodeToString(sum[:])[:8]),
		Text: text,
	}
}
