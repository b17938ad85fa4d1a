package card

// Cache key namespace for card artifacts. The prefixes are part of the wire
// contract with other tooling that inspects the store; do not change them.
const (
	compositeKeyPrefix = "card:composite:"
	qrKeyPrefix        = "card:qr:"
	metaKeyPrefix      = "card:meta:"
	pdfKeyPrefix       = "card:pdf:"
)

// Templates: the registered render template names. Invalidation walks this
// list, so a template missing here leaves stale render entries behind.
var Templates = []string{"standard", "premium"}

// IsRegisteredTemplate: reports whether a template name is known.
func IsRegisteredTemplate(name string) bool {
	for _, t := range Templates {
		if t == name {
			return true
		}
	}
	return false
}

func compositeKey(memberID, template string) string {
	return compositeKeyPrefix + memberID + ":" + template
}

func qrKey(memberID, memberNo string) string {
	if memberNo == "" {
		return qrKeyPrefix + memberID
	}
	return qrKeyPrefix + memberID + ":" + memberNo
}

func metaKey(memberID string) string {
	return metaKeyPrefix + memberID
}

func pdfKey(memberID, template string) string {
	return pdfKeyPrefix + memberID + ":" + template
}
