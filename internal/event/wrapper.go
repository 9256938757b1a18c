package event

// ResultWrapper groups the events one provider returned for one fetch,
// together with the holder identity the provider asserted and the status that
// gates whether any of it may be stored.
type ResultWrapper struct {
	ProviderIdentifier string      `json:"providerIdentifier"`
	ProtocolVersion    string      `json:"protocolVersion"`
	Identity           *Identity   `json:"holder,omitempty"`
	Status             State       `json:"status"`
	Events             []Event     `json:"events,omitempty"`
	Result             *TestResult `json:"result,omitempty"`
}

// RemoteEvent pairs a decoded wrapper with the raw signed response it was
// decoded from. The signed blob is what gets persisted; the wrapper is what
// gets inspected.
type RemoteEvent struct {
	Wrapper        ResultWrapper
	SignedResponse []byte
}

// HolderIdentity returns the identity asserted for this wrapper, falling back
// to the legacy v2 test-result holder. Nil when neither is present.
func (w ResultWrapper) HolderIdentity() *Identity {
	if w.Identity != nil {
		return w.Identity
	}
	if w.Result != nil && w.Result.Holder != nil {
		identity := w.Result.Holder.Identity()
		return &identity
	}
	return nil
}

// TestResult is the legacy 2.0 negative-test payload, kept decodable because
// stored event groups from old clients still carry it.
type TestResult struct {
	Unique         string        `json:"unique"`
	SampleDate     string        `json:"sampleDate"`
	TestType       string        `json:"testType"`
	NegativeResult bool          `json:"negativeResult"`
	Holder         *LegacyHolder `json:"holder,omitempty"`
}

// LegacyHolder carries only the initials and birth day/month of the holder.
type LegacyHolder struct {
	FirstNameInitial string `json:"firstNameInitial"`
	LastNameInitial  string `json:"lastNameInitial"`
	BirthDay         string `json:"birthDay"`
	BirthMonth       string `json:"birthMonth"`
}

// Identity widens the legacy holder into the current identity shape.
func (h LegacyHolder) Identity() Identity {
	return Identity{
		FirstName:        h.FirstNameInitial,
		LastName:         h.LastNameInitial,
		BirthDateString:  "",
		legacyBirthDay:   h.BirthDay,
		legacyBirthMonth: h.BirthMonth,
	}
}
