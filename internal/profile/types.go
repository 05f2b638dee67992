package profile

import "strings"

// UserRole is the user's position in their workplace. Unknown values parse
// to RoleOther so adaptation rules stay total.
type UserRole string

const (
	RoleIndividualContributor UserRole = "individual_contributor"
	RoleManager               UserRole = "manager"
	RoleExecutive             UserRole = "executive"
	RoleOther                 UserRole = "other"
)

// ParseUserRole maps a stored or user-supplied string onto a known role,
// falling back to RoleOther.
func ParseUserRole(s string) UserRole {
	switch UserRole(normalize(s)) {
	case RoleIndividualContributor, RoleManager, RoleExecutive:
		return UserRole(normalize(s))
	}
	return RoleOther
}

// WorkIndustry is the user's line of work. It is descriptive profile state;
// no adaptation rule currently branches on it.
type WorkIndustry string

const (
	IndustryTechnology WorkIndustry = "technology"
	IndustryHealthcare WorkIndustry = "healthcare"
	IndustryFinance    WorkIndustry = "finance"
	IndustryEducation  WorkIndustry = "education"
	IndustryOther      WorkIndustry = "other"
)

// ParseWorkIndustry maps a string onto a known industry, falling back to
// IndustryOther.
func ParseWorkIndustry(s string) WorkIndustry {
	switch WorkIndustry(normalize(s)) {
	case IndustryTechnology, IndustryHealthcare, IndustryFinance, IndustryEducation:
		return WorkIndustry(normalize(s))
	}
	return IndustryOther
}

// InsightComplexity is the user-selected ceiling on how advanced the shown
// insights may be. Tiers are ordered basic < intermediate < advanced.
type InsightComplexity string

const (
	ComplexityBasic        InsightComplexity = "basic"
	ComplexityIntermediate InsightComplexity = "intermediate"
	ComplexityAdvanced     InsightComplexity = "advanced"
)

// Tier returns the numeric rank used for visibility comparisons. Unknown
// values rank as basic, the documented default.
func (c InsightComplexity) Tier() int {
	switch c {
	case ComplexityAdvanced:
		return 2
	case ComplexityIntermediate:
		return 1
	}
	return 0
}

// ParseInsightComplexity maps a string onto a known tier, falling back to
// ComplexityBasic.
func ParseInsightComplexity(s string) InsightComplexity {
	switch InsightComplexity(normalize(s)) {
	case ComplexityIntermediate, ComplexityAdvanced:
		return InsightComplexity(normalize(s))
	}
	return ComplexityBasic
}

// Profile is the static descriptive state insights are adapted against.
type Profile struct {
	Role       UserRole
	Industry   WorkIndustry
	Complexity InsightComplexity
}

// Default returns the profile used before the user configures anything.
func Default() Profile {
	return Profile{
		Role:       RoleOther,
		Industry:   IndustryOther,
		Complexity: ComplexityBasic,
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
