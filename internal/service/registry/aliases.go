package registry

// countryAliases maps common vendor spellings of country names to ISO alpha-2
// codes. Lookups are against the lowercased, trimmed name. The table only needs
// to cover spellings actually seen in the wild; unknown names fall back to a
// slug of the vendor's own name.
var countryAliases = map[string]string{
	"usa":                  "us",
	"united states":        "us",
	"united states of america": "us",
	"uk":                   "gb",
	"united kingdom":       "gb",
	"great britain":        "gb",
	"england":              "gb",
	"russia":               "ru",
	"russian federation":   "ru",
	"india":                "in",
	"indonesia":            "id",
	"china":                "cn",
	"vietnam":              "vn",
	"viet nam":             "vn",
	"philippines":          "ph",
	"germany":              "de",
	"france":               "fr",
	"spain":                "es",
	"italy":                "it",
	"netherlands":          "nl",
	"holland":              "nl",
	"poland":               "pl",
	"ukraine":              "ua",
	"kazakhstan":           "kz",
	"brazil":               "br",
	"mexico":               "mx",
	"canada":               "ca",
	"nigeria":              "ng",
	"kenya":                "ke",
	"south africa":         "za",
	"egypt":                "eg",
	"turkey":               "tr",
	"turkiye":              "tr",
	"thailand":             "th",
	"malaysia":             "my",
	"singapore":            "sg",
	"japan":                "jp",
	"south korea":          "kr",
	"korea":                "kr",
	"israel":               "il",
	"saudi arabia":         "sa",
	"united arab emirates": "ae",
	"uae":                  "ae",
	"pakistan":             "pk",
	"bangladesh":           "bd",
	"argentina":            "ar",
	"colombia":             "co",
	"peru":                 "pe",
	"chile":                "cl",
	"venezuela":            "ve",
	"romania":              "ro",
	"czech republic":       "cz",
	"czechia":              "cz",
	"portugal":             "pt",
	"sweden":               "se",
	"norway":               "no",
	"finland":              "fi",
	"denmark":              "dk",
	"austria":              "at",
	"switzerland":          "ch",
	"belgium":              "be",
	"ireland":              "ie",
	"australia":            "au",
	"new zealand":          "nz",
	"hong kong":            "hk",
	"taiwan":               "tw",
	"morocco":              "ma",
	"algeria":              "dz",
	"tunisia":              "tn",
	"ghana":                "gh",
	"ethiopia":             "et",
	"tanzania":             "tz",
	"uganda":               "ug",
	"ivory coast":          "ci",
	"cote d'ivoire":        "ci",
	"cambodia":             "kh",
	"laos":                 "la",
	"myanmar":              "mm",
	"sri lanka":            "lk",
	"nepal":                "np",
	"georgia":              "ge",
	"armenia":              "am",
	"azerbaijan":           "az",
	"uzbekistan":           "uz",
	"kyrgyzstan":           "kg",
	"tajikistan":           "tj",
	"moldova":              "md",
	"belarus":              "by",
	"latvia":               "lv",
	"lithuania":            "lt",
	"estonia":              "ee",
	"serbia":               "rs",
	"croatia":              "hr",
	"bulgaria":             "bg",
	"hungary":              "hu",
	"slovakia":             "sk",
	"slovenia":             "si",
	"greece":               "gr",
	"cyprus":               "cy",
}

// countryNames maps ISO alpha-2 codes to canonical display names.
var countryNames = map[string]string{
	"us": "United States", "gb": "United Kingdom", "ru": "Russia", "in": "India",
	"id": "Indonesia", "cn": "China", "vn": "Vietnam", "ph": "Philippines",
	"de": "Germany", "fr": "France", "es": "Spain", "it": "Italy",
	"nl": "Netherlands", "pl": "Poland", "ua": "Ukraine", "kz": "Kazakhstan",
	"br": "Brazil", "mx": "Mexico", "ca": "Canada", "ng": "Nigeria",
	"ke": "Kenya", "za": "South Africa", "eg": "Egypt", "tr": "Turkey",
	"th": "Thailand", "my": "Malaysia", "sg": "Singapore", "jp": "Japan",
	"kr": "South Korea", "il": "Israel", "sa": "Saudi Arabia",
	"ae": "United Arab Emirates", "pk": "Pakistan", "bd": "Bangladesh",
	"ar": "Argentina", "co": "Colombia", "pe": "Peru", "cl": "Chile",
	"ve": "Venezuela", "ro": "Romania", "cz": "Czech Republic", "pt": "Portugal",
	"se": "Sweden", "no": "Norway", "fi": "Finland", "dk": "Denmark",
	"at": "Austria", "ch": "Switzerland", "be": "Belgium", "ie": "Ireland",
	"au": "Australia", "nz": "New Zealand", "hk": "Hong Kong", "tw": "Taiwan",
	"ma": "Morocco", "dz": "Algeria", "tn": "Tunisia", "gh": "Ghana",
	"et": "Ethiopia", "tz": "Tanzania", "ug": "Uganda", "ci": "Ivory Coast",
	"kh": "Cambodia", "la": "Laos", "mm": "Myanmar", "lk": "Sri Lanka",
	"np": "Nepal", "ge": "Georgia", "am": "Armenia", "az": "Azerbaijan",
	"uz": "Uzbekistan", "kg": "Kyrgyzstan", "tj": "Tajikistan", "md": "Moldova",
	"by": "Belarus", "lv": "Latvia", "lt": "Lithuania", "ee": "Estonia",
	"rs": "Serbia", "hr": "Croatia", "bg": "Bulgaria", "hu": "Hungary",
	"sk": "Slovakia", "si": "Slovenia", "gr": "Greece", "cy": "Cyprus",
}

// serviceAliases maps vendor shorthand for services onto canonical slugs.
var serviceAliases = map[string]string{
	"wa":  "whatsapp",
	"wb":  "whatsapp",
	"tg":  "telegram",
	"fb":  "facebook",
	"ig":  "instagram",
	"go":  "google",
	"gm":  "google",
	"tw":  "twitter",
	"x":   "twitter",
	"vi":  "viber",
	"vk":  "vkontakte",
	"ok":  "odnoklassniki",
	"ds":  "discord",
	"am":  "amazon",
	"nf":  "netflix",
	"ub":  "uber",
	"sn":  "snapchat",
	"tt":  "tiktok",
	"lf":  "tiktok",
	"mm":  "microsoft",
	"mb":  "yahoo",
	"pp":  "paypal",
	"st":  "steam",
	"oi":  "tinder",
	"wx":  "apple",
	"any": "other",
}

// serviceNames maps canonical service slugs to display names.
var serviceNames = map[string]string{
	"whatsapp":      "WhatsApp",
	"telegram":      "Telegram",
	"facebook":      "Facebook",
	"instagram":     "Instagram",
	"google":        "Google",
	"twitter":       "Twitter / X",
	"viber":         "Viber",
	"vkontakte":     "VKontakte",
	"odnoklassniki": "Odnoklassniki",
	"discord":       "Discord",
	"amazon":        "Amazon",
	"netflix":       "Netflix",
	"uber":          "Uber",
	"snapchat":      "Snapchat",
	"tiktok":        "TikTok",
	"microsoft":     "Microsoft",
	"yahoo":         "Yahoo",
	"paypal":        "PayPal",
	"steam":         "Steam",
	"tinder":        "Tinder",
	"apple":         "Apple",
	"other":         "Other",
}
