package catalog

import "github.com/shopspring/decimal"

func eur(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type LashStyle string

const (
	LashClassic LashStyle = "cil_a_cil"
	LashHybrid  LashStyle = "mixte"
	LashRussian LashStyle = "volume_russe"
	LashMegaVol LashStyle = "mega_volume"
)

// RefillWindowDays is how long after the last visit a refill is still a
// refill. Past it the work is a full set and is priced as one.
const RefillWindowDays = 21

type lashPrices struct {
	label   string
	fullSet decimal.Decimal
	refill  decimal.Decimal
}

var lashTable = map[LashStyle]lashPrices{
	LashClassic: {label: "Cil à Cil", fullSet: eur("55"), refill: eur("40")},
	LashHybrid:  {label: "Mixte", fullSet: eur("55"), refill: eur("45")},
	LashRussian: {label: "Volume Russe", fullSet: eur("60"), refill: eur("50")},
	LashMegaVol: {label: "Mega Volume", fullSet: eur("65"), refill: eur("55")},
}

// Bouquets are priced by stem count.
var bouquetTable = map[int]decimal.Decimal{
	10:  eur("20"),
	20:  eur("32"),
	30:  eur("45"),
	50:  eur("70"),
	100: eur("130"),
}

var bouquetColors = map[string]string{
	"red":   "rouges",
	"white": "blanches",
	"pink":  "roses",
	"mixed": "panachées",
}

type BoxSize string

const (
	BoxSmall  BoxSize = "small"
	BoxMedium BoxSize = "medium"
	BoxLarge  BoxSize = "large"
)

type boxPrices struct {
	label  string
	pieces int
	price  decimal.Decimal
}

var chocolateTable = map[BoxSize]boxPrices{
	BoxSmall:  {label: "Petit coffret", pieces: 9, price: eur("15")},
	BoxMedium: {label: "Coffret moyen", pieces: 16, price: eur("25")},
	BoxLarge:  {label: "Grand coffret", pieces: 25, price: eur("38")},
}

var chocolateFlavors = map[string]string{
	"dark":     "noir",
	"milk":     "lait",
	"white":    "blanc",
	"assorted": "assortiment",
}

type Packaging string

const (
	PackagingStandard Packaging = "standard"
	PackagingKraft    Packaging = "kraft"
	PackagingLuxury   Packaging = "luxury_box"
)

type packagingDef struct {
	label     string
	surcharge decimal.Decimal
}

var packagingTable = map[Packaging]packagingDef{
	PackagingStandard: {label: "Emballage standard", surcharge: decimal.Zero},
	PackagingKraft:    {label: "Papier kraft", surcharge: eur("3")},
	PackagingLuxury:   {label: "Boîte luxe", surcharge: eur("10")},
}

const (
	AddOnRemoval     AddOnID = "removal"
	AddOnLashSerum   AddOnID = "lash_serum"
	AddOnCard        AddOnID = "card"
	AddOnNamedRibbon AddOnID = "named_ribbon"
	AddOnGlitter     AddOnID = "glitter"
	AddOnLights      AddOnID = "led_lights"
	AddOnMessage     AddOnID = "message"
	AddOnGoldLeaf    AddOnID = "gold_leaf"
	AddOnGiftBag     AddOnID = "gift_bag"
)

var addOnTables = map[Kind]map[AddOnID]AddOn{
	KindLash: {
		AddOnRemoval:   {ID: AddOnRemoval, Label: "Dépose de l'ancienne pose", Surcharge: eur("10")},
		AddOnLashSerum: {ID: AddOnLashSerum, Label: "Sérum fortifiant", Surcharge: eur("15")},
	},
	KindBouquet: {
		AddOnCard:        {ID: AddOnCard, Label: "Carte message", Surcharge: eur("3"), NoteAllowed: true},
		AddOnNamedRibbon: {ID: AddOnNamedRibbon, Label: "Ruban personnalisé", Surcharge: eur("8"), NoteAllowed: true},
		AddOnGlitter:     {ID: AddOnGlitter, Label: "Paillettes", Surcharge: eur("5")},
		AddOnLights:      {ID: AddOnLights, Label: "Guirlande LED", Surcharge: eur("6")},
	},
	KindChocolate: {
		AddOnMessage:  {ID: AddOnMessage, Label: "Message personnalisé", Surcharge: eur("3"), NoteAllowed: true},
		AddOnGoldLeaf: {ID: AddOnGoldLeaf, Label: "Feuille d'or", Surcharge: eur("5")},
		AddOnGiftBag:  {ID: AddOnGiftBag, Label: "Sac cadeau", Surcharge: eur("2")},
	},
}

var addOnOrder = map[Kind][]AddOnID{
	KindLash:      {AddOnRemoval, AddOnLashSerum},
	KindBouquet:   {AddOnCard, AddOnNamedRibbon, AddOnGlitter, AddOnLights},
	KindChocolate: {AddOnMessage, AddOnGoldLeaf, AddOnGiftBag},
}
