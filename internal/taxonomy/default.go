package taxonomy

// Default returns the built-in taxonomy: a compact business-document topic
// tree plus the filename keyword table for domain inference. Keywords mix
// English and Hebrew since corpora routinely do; configuration extends both
// tables through Extend.
func Default() *Taxonomy {
	t := New()
	for _, topic := range builtinTopics {
		// IDs in the builtin table are unique and non-empty.
		_ = t.Add(topic)
	}
	for _, d := range builtinDomains {
		t.ExtendDomain(d.name, d.keywords...)
	}
	return t
}

// builtinTopics declare parents before children. Keywords are chosen to be
// distinctive as substrings; short generic stems cause false hits.
var builtinTopics = []Topic{
	{ID: "finance", Name: "Finance", Keywords: []string{"invoice", "payment", "budget", "expense", "reimbursement", "חשבונית", "תקציב"}},
	{ID: "finance/billing", Name: "Billing", Keywords: []string{"billing", "subscription", "renewal", "payment method"}},
	{ID: "finance/tax", Name: "Tax", Keywords: []string{"taxes", "withholding", "tax year", "מס הכנסה"}},
	{ID: "legal", Name: "Legal", Keywords: []string{"contract", "agreement", "liability", "jurisdiction", "חוזה"}},
	{ID: "legal/contracts", Name: "Contracts", Keywords: []string{"counterparty", "signature", "termination clause", "הסכם"}},
	{ID: "legal/privacy", Name: "Privacy", Keywords: []string{"privacy", "gdpr", "personal data", "consent", "פרטיות"}},
	{ID: "hr", Name: "People", Keywords: []string{"employee", "onboarding", "payroll", "עובדים"}},
	{ID: "hr/benefits", Name: "Benefits", Keywords: []string{"benefits", "pension", "stipend", "wellness", "פנסיה"}},
	{ID: "hr/leave", Name: "Leave", Keywords: []string{"vacation", "sick leave", "parental leave", "absence", "חופשה"}},
	{ID: "engineering", Name: "Engineering", Keywords: []string{"deployment", "architecture", "incident", "infrastructure"}},
	{ID: "engineering/runbooks", Name: "Runbooks", Keywords: []string{"runbook", "on-call", "escalation", "outage", "rollback"}},
	{ID: "engineering/apis", Name: "APIs", Keywords: []string{"endpoint", "status code", "schema", "pagination", "authentication"}},
	{ID: "operations", Name: "Operations", Keywords: []string{"procedure", "inventory", "logistics", "supplier", "checklist"}},
	{ID: "support", Name: "Support", Keywords: []string{"customer", "ticket", "refund", "complaint", "לקוח"}},
	{ID: "general", Name: "General", Keywords: []string{"announcement", "faq", "newsletter"}},
}

// builtinDomains are matched against file names in order; first hit wins.
var builtinDomains = []domainEntry{
	{name: "finance", keywords: []string{"invoice", "billing", "budget", "expense", "finance", "חשבונית"}},
	{name: "legal", keywords: []string{"contract", "agreement", "terms", "nda", "legal", "חוזה"}},
	{name: "hr", keywords: []string{"handbook", "benefits", "onboarding", "payroll", "hr-", "hr_"}},
	{name: "engineering", keywords: []string{"runbook", "architecture", "postmortem", "design-doc", "deploy"}},
	{name: "operations", keywords: []string{"procedure", "sop", "inventory", "logistics"}},
	{name: "support", keywords: []string{"faq", "support", "troubleshooting", "תמיכה"}},
}
