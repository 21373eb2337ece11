package arc

import "github.com/jpearleverett/story-continuity/internal/model"

// TotalChapters is the length of a story arc.
const TotalChapters = 12

// Beat types.
const (
	BeatColdOpen      = "cold_open"
	BeatInvestigation = "investigation"
	BeatChase         = "chase"
	BeatBottle        = "bottle_episode"
	BeatRevelation    = "revelation"
	BeatConfrontation = "confrontation"
	BeatBetrayal      = "betrayal"
	BeatDenouement    = "denouement"
)

type chapterRule struct {
	phase   string
	beat    string
	tension int
	focus   string
	hook    string
	stakes  string
	anchor  string
}

// chapterRules is indexed by chapter-1.
var chapterRules = [TotalChapters]chapterRule{
	{
		phase: "setup", beat: BeatColdOpen, tension: 3,
		focus:  "Jack receives the first black envelope and reopens the Emily Cross file",
		hook:   "The envelope names a case Jack closed twenty years ago",
		stakes: "Jack's reputation rests on convictions that may be false",
		anchor: "Whiskey, rain and the quiet of an empty office",
	},
	{
		phase: "setup", beat: BeatInvestigation, tension: 4,
		focus:  "Sarah brings the lab results that contradict the old testimony",
		hook:   "A witness from the original trial turns up dead",
		stakes: "Sarah's career if she is seen helping Jack",
		anchor: "Cold coffee and a notebook full of questions at the diner",
	},
	{
		phase: "rising_action", beat: BeatChase, tension: 5,
		focus:  "Following the money from the harbor precinct to the Grange ledger",
		hook:   "The initials T.W. appear next to every fabrication",
		stakes: "Jack's friendship with Tom Wade",
		anchor: "Tom's old lighter in Jack's pocket",
	},
	{
		phase: "rising_action", beat: BeatBottle, tension: 5,
		focus:  "A long night in the interrogation room with Silas Reed",
		hook:   "Silas hints that Victoria has been watching since the first letter",
		stakes: "Whether Jack can outlast a man who has nothing left to lose",
		anchor: "The hum of fluorescent lights and cold coffee",
	},
	{
		phase: "complication", beat: BeatRevelation, tension: 6,
		focus:  "The insurance policy reveals how deep the frame-ups run",
		hook:   "Victoria makes contact in person",
		stakes: "Every conviction Jack helped secure",
		anchor: "Jack rereading his own signature on the evidence logs",
	},
	{
		phase: "midpoint", beat: BeatConfrontation, tension: 7,
		focus:  "Meeting Victoria at the warehouse on her terms",
		hook:   "Victoria demands Jack handle Silas Reed",
		stakes: "Sarah's safety now that Victoria knows her name",
		anchor: "Fog off the water and the click of a lighter",
	},
	{
		phase: "escalation", beat: BeatInvestigation, tension: 7,
		focus:  "Chasing the third slug Tom hid before he died",
		hook:   "The evidence box is scheduled for destruction",
		stakes: "The last physical proof of the frame-ups",
		anchor: "A cautious search of a dead friend's storage unit",
	},
	{
		phase: "escalation", beat: BeatBetrayal, tension: 8,
		focus:  "Sarah learns what Jack kept from her",
		hook:   "Sarah walks out and takes the case files with her",
		stakes: "The partnership that has kept Jack honest",
		anchor: "An empty chair in the office",
	},
	{
		phase: "crisis", beat: BeatBottle, tension: 8,
		focus:  "Jack alone with the Grange ledger and the choice Victoria offered",
		hook:   "A message from Victoria: you are alone now, good",
		stakes: "Who Jack becomes if he takes her tools",
		anchor: "Rain against the window and a phone that will not ring",
	},
	{
		phase: "climax_approach", beat: BeatChase, tension: 9,
		focus:  "Racing to stop the Chronos file from reaching the press",
		hook:   "Judge Chen's chambers have already been broken into",
		stakes: "The city's trust in every verdict of the last twenty years",
		anchor: "Sirens across the bridge at midnight",
	},
	{
		phase: "climax", beat: BeatConfrontation, tension: 10,
		focus:  "The final confrontation with Victoria at the harbor",
		hook:   "Victoria offers mutual silence or mutual destruction",
		stakes: "Jack's freedom and Sarah's life",
		anchor: "Salt air and the weight of the burner phone",
	},
	{
		phase: "resolution", beat: BeatDenouement, tension: 6,
		focus:  "Living with what the truth cost",
		hook:   "One last envelope, unopened",
		stakes: "Whether Jack can forgive himself",
		anchor: "Morning light on the old case board",
	},
}

// exampleCategories lists the illustrative example categories for each beat.
var exampleCategories = map[string][]string{
	BeatColdOpen:      {"atmosphere", "hook", "voice"},
	BeatInvestigation: {"clue_discovery", "dialogue", "procedure"},
	BeatChase:         {"action", "pacing", "setting"},
	BeatBottle:        {"dialogue", "interiority", "tension"},
	BeatRevelation:    {"clue_discovery", "emotion", "reversal"},
	BeatConfrontation: {"action", "dialogue", "stakes"},
	BeatBetrayal:      {"emotion", "relationship", "reversal"},
	BeatDenouement:    {"emotion", "resolution", "voice"},
}

var themes = map[model.RiskTolerance]string{
	model.RiskLow:      "The truth is built brick by brick, and patience is the only weapon the guilty cannot outlast.",
	model.RiskModerate: "Every case is a bargain between instinct and evidence, and the city collects on both.",
	model.RiskHigh:     "Justice delayed is justice denied; the only way out of the fire is through it.",
}

// approaches are appended to each chapter's focus to steer the player's method.
var approaches = map[model.RiskTolerance]string{
	model.RiskLow:      "investigate carefully and gather evidence before moving",
	model.RiskModerate: "weigh instinct against evidence",
	model.RiskHigh:     "act decisively before the trail goes cold",
}

// BeatFor returns the beat type planned for a chapter; chapters outside the
// arc fall back to the nearest planned chapter.
func BeatFor(chapter int) string {
	return ruleFor(chapter).beat
}

// ExampleCategories returns a copy of the example categories for a beat type.
func ExampleCategories(beat string) []string {
	return append([]string(nil), exampleCategories[beat]...)
}

// Theme returns the arc theme for a risk tolerance.
func Theme(r model.RiskTolerance) string {
	if t, ok := themes[r]; ok {
		return t
	}
	return themes[model.RiskModerate]
}

func ruleFor(chapter int) chapterRule {
	switch {
	case chapter < 1:
		chapter = 1
	case chapter > TotalChapters:
		chapter = TotalChapters
	}
	return chapterRules[chapter-1]
}
