// internal/amnet/records.go
package amnet

// Typed views of the AM.net record payloads. Only the fields the sync
// engine actually consumes are declared; the upstream API returns more.

// Event is the raw CPE event record keyed by (Code, Year).
type Event struct {
	Code                       string      `json:"Code"`
	Year                       string      `json:"Yr"`
	Name                       string      `json:"Name"`
	TypeCode                   string      `json:"TypeCode"`
	FormatCode                 string      `json:"FormatCode"`
	StatusCode                 string      `json:"StatusCode"`
	Acronym                    string      `json:"Acronym"`
	BeginDate                  string      `json:"BeginDate"`
	EndDate                    string      `json:"EndDate"`
	DayTimes                   []DayTime   `json:"DayTimes"`
	CutoffDate                 string      `json:"CutoffDate"`
	Fees                       []Fee       `json:"Fees"`
	Sessions                   []Session   `json:"Sessions"`
	SpecialFees                []Fee       `json:"SpecialFees"`
	Bundles                    []BundleRef `json:"Bundles"`
	Credits                    []Credit    `json:"Credits"`
	Documents                  []Document  `json:"Documents"`
	FacilityName               string      `json:"FacilityName"`
	FacilityCity               string      `json:"FacilityCity"`
	CurrentRegistrations       int         `json:"CurrentRegistrations"`
	BudgetRegistrations        int         `json:"BudgetRegistrations"`
	ExcludeFromInternalCatalog bool        `json:"ExcludeFromInternalCatalog"`
	ExcludeFromWebsite         bool        `json:"ExcludeFromWebsite"`
}

// DayTime is one per-day begin/end time pair ("08:30", "16:45").
// At most three are supplied per event.
type DayTime struct {
	BeginTime string `json:"BeginTime"`
	EndTime   string `json:"EndTime"`
}

// Fee is a raw fee row classified by its (Ty, Ty2, ApplyToMemberType) triple.
type Fee struct {
	Ty                string  `json:"Ty"`
	Ty2               string  `json:"Ty2"`
	ApplyToMemberType string  `json:"ApplyToMemberType"`
	Amount            float64 `json:"Amount"`
	Description       string  `json:"Description"`
}

// Session is a raw sub-unit of an event.
type Session struct {
	Code               string   `json:"Code"`
	Description        string   `json:"Description"`
	Day                string   `json:"Day"`
	BeginTime          string   `json:"BeginTime"`
	EndTime            string   `json:"EndTime"`
	Capacity           int      `json:"Capacity"`
	SortSequence       string   `json:"SortSequence"`
	ConcurrentSessions []string `json:"ConcurrentSessions"`
	Leaders            []string `json:"Leaders"`
	Fee                float64  `json:"Fee"`
	CreditHours        float64  `json:"CreditHours"`
}

// BundleRef points at a component event sold as part of this one.
type BundleRef struct {
	Code string `json:"Code"`
	Year string `json:"Yr"`
}

// Credit is one line of the credit-hour breakdown.
type Credit struct {
	Category string  `json:"Category"`
	Hours    float64 `json:"Hours"`
}

// Document is an attachment reference resolved by the document collaborator.
type Document struct {
	ID       string `json:"ID"`
	Title    string `json:"Title"`
	URL      string `json:"URL"`
	MimeType string `json:"MimeType"`
}

// Product is the raw self-study product record keyed by Code.
type Product struct {
	Code               string     `json:"Code"`
	Description        string     `json:"Description"`
	CategoryCode       string     `json:"CategoryCode"`
	FormatCode         string     `json:"FormatCode"`
	StatusCode         string     `json:"StatusCode"`
	Fees               []Fee      `json:"Fees"`
	Credits            []Credit   `json:"Credits"`
	Documents          []Document `json:"Documents"`
	ExcludeFromWebSale bool       `json:"ExcludeFromWebSale"`
}

// Person is a remote member/contact record keyed by its names id.
type Person struct {
	ID           int    `json:"ID"`
	FirstName    string `json:"FirstName"`
	LastName     string `json:"LastName"`
	Email        string `json:"Email"`
	MemberStatus string `json:"MemberStatus"`
}

// Registration is one row of the event registration feed.
type Registration struct {
	PersonID    int    `json:"NamesID"`
	EventCode   string `json:"EventCode"`
	EventYear   string `json:"EventYear"`
	SessionCode string `json:"SessionCode"`
	StatusCode  string `json:"StatusCode"`
	UpdatedAt   string `json:"LastChanged"`
}

// ProductSale is one row of the self-study purchase feed.
type ProductSale struct {
	PersonID    int    `json:"NamesID"`
	ProductCode string `json:"ProductCode"`
	StatusCode  string `json:"StatusCode"`
	UpdatedAt   string `json:"LastChanged"`
}

// Outbound payloads. One per order-line-item kind; every payload carries the
// payment trail AM.net expects on its transaction screens.

type PaymentTrail struct {
	PayorName       string  `json:"PayorName"`
	CardNumber      string  `json:"CardNumber"` // masked, last four only
	CardExpiry      string  `json:"CardExpiry"`
	ReferenceCode   string  `json:"ReferenceCode"`
	AuthCode        string  `json:"AuthCode"`
	TransactionDate string  `json:"TransactionDate"`
	CCAmount        float64 `json:"CCAmount"`
}

type EventRegistrationPayload struct {
	PersonID     int          `json:"NamesID"`
	EventCode    string       `json:"EventCode"`
	EventYear    string       `json:"EventYear"`
	SessionCodes []string     `json:"SessionCodes"`
	Payment      PaymentTrail `json:"Payment"`
}

type ProductSalePayload struct {
	PersonID    int          `json:"NamesID"`
	ProductCode string       `json:"ProductCode"`
	Payment     PaymentTrail `json:"Payment"`
}

type DuesPaymentPayload struct {
	PersonID int          `json:"NamesID"`
	DuesYear string       `json:"DuesYear"`
	Payment  PaymentTrail `json:"Payment"`
}

type ContributionPayload struct {
	PersonID int          `json:"NamesID"`
	FundCode string       `json:"FundCode"`
	Payment  PaymentTrail `json:"Payment"`
}

type PeerReviewPaymentPayload struct {
	PersonID   int          `json:"NamesID"`
	FirmNumber string       `json:"FirmNumber"`
	Payment    PaymentTrail `json:"Payment"`
}

// PushResult is the upstream acknowledgement for any outbound mutation.
type PushResult struct {
	Processed bool     `json:"Processed"`
	Messages  []string `json:"Messages"`
}
