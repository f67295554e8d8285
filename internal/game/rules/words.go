package rules

// Built-in fallback decks. Real deployments ship full content packs
// through external configuration; these keep the engine playable and
// the tests hermetic.

var drawWords = []string{
	"bicycle", "lighthouse", "penguin", "volcano", "umbrella",
	"giraffe", "sandwich", "rocket", "castle", "octopus",
	"snowman", "guitar", "pirate", "tornado", "cactus",
	"dragon", "submarine", "scarecrow", "waterfall", "telescope",
	"mermaid", "campfire", "skeleton", "windmill", "helicopter",
}

var aliasWords = []string{
	"appetite", "blanket", "compass", "dolphin", "eclipse",
	"festival", "gravity", "harvest", "illusion", "journey",
	"kingdom", "lantern", "miracle", "nightmare", "orchestra",
	"paradox", "quarrel", "rainbow", "sculpture", "treasure",
	"universe", "village", "whisper", "yearbook", "zeppelin",
	"avalanche", "bonfire", "carousel", "dynasty", "ember",
}

var codenamesWords = []string{
	"anchor", "beacon", "cipher", "delta", "ember",
	"falcon", "glacier", "harbor", "ivory", "jungle",
	"kettle", "lotus", "meteor", "nectar", "onyx",
	"prism", "quartz", "raven", "sphinx", "tundra",
	"umbra", "vortex", "walnut", "xenon", "yonder",
	"zephyr", "atlas", "bramble", "cascade", "drift",
	"echo", "fable", "grove", "hollow", "inlet",
}

// Spy word pairs: the spy holds the second, similar word.
var spyWordPairs = [][2]string{
	{"coffee", "tea"},
	{"violin", "cello"},
	{"beach", "desert"},
	{"painter", "sculptor"},
	{"train", "tram"},
	{"butter", "margarine"},
	{"novel", "biography"},
	{"forest", "jungle"},
	{"soccer", "rugby"},
	{"lake", "pond"},
}

// Frequency spectrum cards, left pole / right pole.
var frequencyPrompts = [][2]string{
	{"cold", "hot"},
	{"underrated", "overrated"},
	{"quiet", "loud"},
	{"ordinary", "bizarre"},
	{"useless", "essential"},
	{"ancient", "modern"},
	{"scary", "comforting"},
	{"cheap", "expensive"},
	{"fragile", "durable"},
	{"guilty pleasure", "openly loved"},
}
