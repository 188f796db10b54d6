package domain

// bodyStyleByModel maps well-known model names (lowercase) to a body style,
// used when a feed row carries no usable body_style column.
var bodyStyleByModel = map[string]string{
	// trucks
	"f-150": "truck", "f150": "truck", "f-250": "truck", "silverado": "truck",
	"sierra": "truck", "1500": "truck", "2500": "truck", "tundra": "truck",
	"tacoma": "truck", "ranger": "truck", "colorado": "truck", "canyon": "truck",
	"frontier": "truck", "titan": "truck", "gladiator": "truck", "maverick": "truck",
	"ridgeline": "truck", "cybertruck": "truck", "lightning": "truck",
	// suvs and crossovers
	"equinox": "suv", "rav4": "suv", "cr-v": "suv", "crv": "suv", "hr-v": "suv",
	"explorer": "suv", "escape": "suv", "edge": "suv", "expedition": "suv",
	"bronco": "suv", "tahoe": "suv", "suburban": "suv", "traverse": "suv",
	"blazer": "suv", "trailblazer": "suv", "highlander": "suv", "4runner": "suv",
	"sequoia": "suv", "venza": "suv", "pilot": "suv", "passport": "suv",
	"rogue": "suv", "murano": "suv", "pathfinder": "suv", "armada": "suv",
	"kicks": "suv", "tucson": "suv", "santa fe": "suv", "palisade": "suv",
	"kona": "suv", "venue": "suv", "sportage": "suv", "sorento": "suv",
	"telluride": "suv", "seltos": "suv", "soul": "suv", "outback": "suv",
	"forester": "suv", "crosstrek": "suv", "ascent": "suv", "cx-5": "suv",
	"cx-9": "suv", "cx-30": "suv", "cx-50": "suv", "wrangler": "suv",
	"grand cherokee": "suv", "cherokee": "suv", "compass": "suv", "renegade": "suv",
	"wagoneer": "suv", "durango": "suv", "terrain": "suv", "acadia": "suv",
	"yukon": "suv", "escalade": "suv", "enclave": "suv", "encore": "suv",
	"tiguan": "suv", "atlas": "suv", "taos": "suv", "id.4": "suv",
	"x3": "suv", "x5": "suv", "x7": "suv", "glc": "suv", "gle": "suv",
	"gls": "suv", "q3": "suv", "q5": "suv", "q7": "suv", "q8": "suv",
	"rx": "suv", "nx": "suv", "gx": "suv", "ux": "suv", "mdx": "suv",
	"rdx": "suv", "model y": "suv", "model x": "suv", "mach-e": "suv",
	"ioniq 5": "suv", "ev6": "suv", "ev9": "suv", "ariya": "suv",
	// sedans
	"camry": "sedan", "corolla": "sedan", "avalon": "sedan", "civic": "sedan",
	"accord": "sedan", "insight": "sedan", "fusion": "sedan", "malibu": "sedan",
	"impala": "sedan", "altima": "sedan", "sentra": "sedan", "maxima": "sedan",
	"elantra": "sedan", "sonata": "sedan", "forte": "sedan", "k5": "sedan",
	"jetta": "sedan", "passat": "sedan", "arteon": "sedan", "legacy": "sedan",
	"mazda3": "sedan", "mazda6": "sedan", "charger": "sedan", "3 series": "sedan",
	"5 series": "sedan", "7 series": "sedan", "c-class": "sedan", "e-class": "sedan",
	"s-class": "sedan", "a3": "sedan", "a4": "sedan", "a6": "sedan",
	"es": "sedan", "is": "sedan", "ls": "sedan", "tlx": "sedan",
	"integra": "sedan", "model 3": "sedan", "model s": "sedan", "ioniq 6": "sedan",
	// minivans
	"odyssey": "minivan", "sienna": "minivan", "pacifica": "minivan",
	"carnival": "minivan", "grand caravan": "minivan",
	// coupes and sports cars
	"mustang": "coupe", "camaro": "coupe", "corvette": "coupe",
	"challenger": "coupe", "supra": "coupe", "brz": "coupe", "gr86": "coupe",
	"86": "coupe", "370z": "coupe", "400z": "coupe", "lc": "coupe",
	"tt": "coupe", "amg gt": "coupe", "cla": "coupe",
	// hatchbacks and convertibles
	"golf": "hatchback", "gti": "hatchback", "fit": "hatchback",
	"impreza": "hatchback", "veloster": "hatchback", "prius": "hatchback",
	"bolt": "hatchback", "leaf": "hatchback", "mx-5 miata": "convertible",
	"miata": "convertible",
}

// electricModels are models that only ship as battery-electric, used when a
// feed row carries no fuel_type column.
var electricModels = map[string]bool{
	"model 3": true, "model y": true, "model s": true, "model x": true,
	"cybertruck": true, "bolt": true, "leaf": true, "ioniq 5": true,
	"ioniq 6": true, "id.4": true, "mach-e": true, "ariya": true,
	"ev6": true, "ev9": true, "lightning": true, "i4": true, "ix": true,
	"e-tron": true, "lyriq": true,
}

// hybridModels are models that only ship as hybrids.
var hybridModels = map[string]bool{
	"prius": true, "insight": true,
}

// luxuryMakes marks brands whose whole line counts as luxury.
var luxuryMakes = map[string]bool{
	"acura": true, "alfa romeo": true, "audi": true, "bmw": true,
	"cadillac": true, "genesis": true, "infiniti": true, "jaguar": true,
	"land rover": true, "lexus": true, "lincoln": true, "maserati": true,
	"mercedes": true, "mercedes-benz": true, "porsche": true, "rivian": true,
	"tesla": true, "volvo": true,
}

// performanceMarkers are model/trim tokens that mark a performance vehicle.
// Matched on word boundaries against "model trim" lowercase.
var performanceMarkers = []string{
	"gt", "gt350", "gt500", "shelby", "ss", "zl1", "z06", "z51", "srt",
	"hellcat", "scat pack", "raptor", "trx", "type r", "type s", "si",
	"sti", "wrx", "gti", "golf r", "nismo", "n line", "amg", "m3", "m4",
	"m5", "m8", "rs", "supra",
}

// luxuryTrimMarkers are trim tokens that mark a loaded, luxury-grade unit
// even on a mainstream brand.
var luxuryTrimMarkers = []string{
	"platinum", "denali", "limited", "high country", "king ranch", "summit",
	"touring", "premium", "calligraphy", "signature", "autobiography",
}

// MinModelYear is the earliest model year we accept.
const MinModelYear = 1980

// MaxModelYear is the latest model year we accept (current + 1 for next-year models).
const MaxModelYear = 2027
