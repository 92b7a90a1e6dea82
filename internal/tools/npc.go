package tools

var (
	npcFirstNames = []string{"Mira", "Tobin", "Elsa", "Garrick", "Lys", "Bram", "Odessa", "Finn", "Hilde", "Corwin"}
	npcLastNames  = []string{"Ashdown", "Briar", "Coldwater", "Duskmantle", "Ember", "Fairwind", "Greaves", "Hollow"}

	npcAppearances = []string{
		"tall and wiry, with ink-stained fingers",
		"broad-shouldered, with a braided grey beard",
		"small and quick-eyed, wearing a patched green cloak",
		"scarred across one cheek, always smiling",
		"elegant, in clothes a little too fine for the village",
		"weathered by sun, smelling faintly of pipe smoke",
	}

	npcSecrets = []string{
		"owes a large debt to the thieves' guild",
		"is secretly the heir of a fallen noble house",
		"once served the dragon as a spy",
		"knows a hidden path through the Mountain Pass",
		"buried a stolen relic beneath the Ancient Ruins",
		"is cursed to speak only half-truths after dark",
	}

	npcMoods = []string{"friendly", "neutral", "hostile", "suspicious", "fearful", "cheerful"}
)

func pick(r Roller, table []string) string {
	return table[r.IntN(len(table))]
}
