package rules

import "regexp"

// Keyword families used by the rule table. All matching is done against
// lower-cased text, so every entry here is lower-case.

var groceryCommodities = []string{
	"milk", "bread", "rice", "dal", "atta", "flour", "sugar", "salt", "oil",
	"ghee", "eggs", "paneer", "curd", "butter", "vegetables", "vegetable",
	"fruits", "fruit", "onion", "potato", "tomato", "masala", "spices",
	"tea powder", "biscuits", "grocery", "groceries",
}

var foodCommodities = []string{
	"dosa", "idli", "vada", "biryani", "pizza", "burger", "sandwich",
	"thali", "meal", "lunch", "dinner", "breakfast", "coffee", "tea",
	"samosa", "chaat", "noodles", "momos", "paratha", "shawarma", "roll",
	"juice", "shake", "icecream", "ice cream", "cake", "pastry",
}

var healthcareCommodities = []string{
	"medicine", "medicines", "tablet", "tablets", "syrup", "capsule",
	"paracetamol", "injection", "bandage", "ointment", "vitamins",
	"supplement", "sanitizer", "mask", "thermometer",
}

var homeLoanKeywords = []string{
	"home loan", "housing loan", "house loan", "mortgage", "home emi",
	"housing finance", "hfc",
}

var vehicleLoanKeywords = []string{
	"car loan", "auto loan", "vehicle loan", "bike loan", "two wheeler loan",
	"car emi", "bike emi", "vehicle emi",
}

var creditCardKeywords = []string{
	"credit card", "creditcard", "cc payment", "card payment", "card bill",
	"cc bill",
}

var personalLoanKeywords = []string{
	"personal loan", "pl emi", "consumer loan", "instant loan",
}

var educationLoanKeywords = []string{
	"education loan", "student loan", "study loan",
}

var emiKeywords = []string{
	"emi", "equated monthly", "installment", "instalment", "loan repayment",
	"loan payment", "loan emi",
}

var rentKeywords = []string{
	"rent", "house rent", "room rent", "rental", "landlord", "lease",
	"maintenance charge", "society maintenance",
}

var investmentExpenseKeywords = []string{
	"mutual fund", "sip", "systematic investment", "zerodha", "groww",
	"upstox", "kite", "coin", "stocks", "shares", "equity", "demat",
	"nps", "ppf", "fixed deposit", "fd booking", "recurring deposit",
	"gold bond", "sovereign gold", "etf",
}

var investmentReturnKeywords = []string{
	"dividend", "interest credit", "interest earned", "maturity",
	"redemption", "fd maturity", "capital gain",
}

var propertyKeywords = []string{
	"property", "real estate", "plot", "land purchase", "apartment booking",
	"flat booking", "registration charges", "stamp duty",
}

var subscriptionKeywords = []string{
	"netflix", "spotify", "hotstar", "disney", "prime video", "amazon prime",
	"youtube premium", "sonyliv", "sony liv", "zee5", "jiocinema", "gaana",
	"wynk", "audible", "kindle unlimited", "apple music", "icloud",
	"google one", "subscription", "membership",
}

var entertainmentKeywords = []string{
	"bookmyshow", "pvr", "inox", "cinepolis", "cinema", "movie", "multiplex",
	"theatre", "concert", "gaming", "playstation", "xbox", "steam",
}

var paymentAppUPIHandles = []string{
	"paytm", "phonepe", "gpay", "okicici", "okhdfcbank", "okaxis", "oksbi",
	"ybl", "ibl", "axl", "apl", "mobikwik", "freecharge", "amazonpay",
}

var rechargeBillKeywords = []string{
	"recharge", "bill payment", "billpay", "bill pay", "dth", "broadband",
	"postpaid", "prepaid", "electricity", "power bill", "water bill",
	"gas bill", "lpg", "cylinder", "fastag", "wifi",
}

var telecomUtilityKeywords = []string{
	"jio", "airtel", "vi", "vodafone", "idea", "bsnl", "mtnl", "act fibernet",
	"hathway", "tata power", "bescom", "mseb", "adani electricity",
	"torrent power", "indane", "bharatgas", "hp gas",
}

var taxKeywords = []string{
	"gst", "tds", "income tax", "advance tax", "self assessment tax",
	"property tax", "professional tax", "tax payment", "itr",
}

var giftKeywords = []string{
	"gift", "shagun", "wedding gift", "birthday gift", "donation",
	"charity", "ngo", "relief fund", "temple", "zakat", "tithe",
}

var cashbackKeywords = []string{
	"cashback", "cash back", "reward", "rewards", "scratch card", "bonus",
}

var feeKeywords = []string{
	"fee", "charges", "charge", "penalty", "fine", "amc", "annual maintenance",
	"late payment", "processing fee", "sms charges", "min balance",
	"non maintenance", "inspection charge", "cheque bounce", "ecs return",
}

var refundKeywords = []string{
	"refund", "reversal", "reversed", "returned", "chargeback",
	"failed transaction",
}

var bankTransferKeywords = []string{
	"neft", "rtgs", "imps",
}

var salaryKeywords = []string{
	"salary", "sal credit", "wages", "stipend", "payroll", "pay slip",
}

var groceryMerchants = []string{
	"bigbasket", "big basket", "big bazaar", "blinkit", "zepto", "grofers", "dmart",
	"d-mart", "reliance fresh", "reliance smart", "more supermarket",
	"spencers", "nature's basket", "kirana", "supermarket", "hypermarket",
	"instamart",
}

var foodMerchants = []string{
	"swiggy", "zomato", "dominos", "domino's", "mcdonald", "kfc", "subway",
	"pizza hut", "burger king", "starbucks", "cafe coffee day", "ccd",
	"barista", "haldiram", "restaurant", "cafe", "bakery", "eatery",
	"food court", "dhaba", "kiosk", "biryani",
}

var shoppingMerchants = []string{
	"amazon", "flipkart", "myntra", "ajio", "meesho", "snapdeal", "nykaa",
	"tata cliq", "croma", "reliance digital", "vijay sales", "decathlon",
	"ikea", "lifestyle", "pantaloons", "westside", "zudio", "mall",
	"shopping",
}

var transportMerchants = []string{
	"uber", "ola", "rapido", "irctc", "redbus", "metro", "bmtc", "best bus",
	"petrol", "diesel", "fuel", "indian oil", "bharat petroleum", "hpcl",
	"shell", "toll", "parking", "makemytrip", "goibibo", "cleartrip",
	"indigo", "spicejet", "air india", "vistara", "cab", "taxi", "auto fare",
}

var healthcareMerchants = []string{
	"apollo", "pharmacy", "medplus", "netmeds", "1mg", "pharmeasy",
	"hospital", "clinic", "diagnostic", "lab", "pathology", "dental",
	"practo", "chemist", "medical",
}

var educationMerchants = []string{
	"school", "college", "university", "tuition", "coaching", "udemy",
	"coursera", "upgrad", "byju", "unacademy", "vedantu", "skillshare",
	"exam fee", "academy",
}

var insuranceKeywords = []string{
	"lic", "insurance", "policy premium", "premium payment", "hdfc ergo",
	"icici lombard", "star health", "new india assurance", "acko", "digit",
	"policybazaar", "term plan", "mediclaim",
}

// wordPatterns holds one precompiled word-boundary regexp per keyword, so
// "emi" cannot match inside "premium" or "fee" inside "coffee". Every family
// above must be registered here.
var wordPatterns = compileWordPatterns(
	groceryCommodities, foodCommodities, healthcareCommodities,
	homeLoanKeywords, vehicleLoanKeywords, creditCardKeywords,
	personalLoanKeywords, educationLoanKeywords, emiKeywords, rentKeywords,
	investmentExpenseKeywords, investmentReturnKeywords, propertyKeywords,
	subscriptionKeywords, entertainmentKeywords, paymentAppUPIHandles,
	rechargeBillKeywords, telecomUtilityKeywords, taxKeywords, giftKeywords,
	cashbackKeywords, feeKeywords, refundKeywords, bankTransferKeywords,
	salaryKeywords, groceryMerchants, foodMerchants, shoppingMerchants,
	transportMerchants, healthcareMerchants, educationMerchants,
	insuranceKeywords,
)

func compileWordPatterns(lists ...[]string) map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp)
	for _, list := range lists {
		for _, kw := range list {
			if _, ok := patterns[kw]; ok {
				continue
			}
			patterns[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
		}
	}
	return patterns
}

// containsAny reports whether text contains any of the keywords as whole
// words.
func containsAny(text string, keywords []string) bool {
	return firstMatch(text, keywords) != ""
}

// firstMatch returns the first keyword found in text, or "".
func firstMatch(text string, keywords []string) string {
	for _, kw := range keywords {
		if re := wordPatterns[kw]; re != nil && re.MatchString(text) {
			return kw
		}
	}
	return ""
}
