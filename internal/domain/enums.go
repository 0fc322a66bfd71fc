package domain

// SourceType categorizes where an item came from.
type SourceType string

const (
	SourceNews       SourceType = "news"
	SourceFiling     SourceType = "filing"
	SourceTranscript SourceType = "transcript"
	SourceReport     SourceType = "report"
	SourceResearch   SourceType = "research"
	SourceGovernment SourceType = "government"
	SourcePolicy     SourceType = "policy"
	SourceIndustry   SourceType = "industry"
	SourceOther      SourceType = "other"
)

var validSourceTypes = map[SourceType]bool{
	SourceNews: true, SourceFiling: true, SourceTranscript: true,
	SourceReport: true, SourceResearch: true, SourceGovernment: true,
	SourcePolicy: true, SourceIndustry: true, SourceOther: true,
}

func (s SourceType) Valid() bool { return validSourceTypes[s] }

// Dimension is one of the five structural dimensions the framework tracks.
type Dimension string

const (
	DimensionCompute    Dimension = "compute_and_computational_paradigms"
	DimensionCapital    Dimension = "capital_flows_and_business_models"
	DimensionEnergy     Dimension = "energy_resources_and_physical_constraints"
	DimensionAdoption   Dimension = "technology_adoption_and_industrial_diffusion"
	DimensionGovernance Dimension = "governance_regulation_and_societal_response"
)

var validDimensions = map[Dimension]bool{
	DimensionCompute: true, DimensionCapital: true, DimensionEnergy: true,
	DimensionAdoption: true, DimensionGovernance: true,
}

func (d Dimension) Valid() bool { return validDimensions[d] }

// Dimensions returns the full closed set, in canonical order.
func Dimensions() []Dimension {
	return []Dimension{
		DimensionCompute, DimensionCapital, DimensionEnergy,
		DimensionAdoption, DimensionGovernance,
	}
}

// Relevance qualifies how central a dimension is to a classification.
type Relevance string

const (
	RelevancePrimary   Relevance = "primary"
	RelevanceSecondary Relevance = "secondary"
)

func (r Relevance) Valid() bool {
	return r == RelevancePrimary || r == RelevanceSecondary
}

// ChangeType classifies the direction of structural change.
type ChangeType string

const (
	ChangeReinforcing ChangeType = "reinforcing"
	ChangeFriction    ChangeType = "friction"
	ChangeEarlySignal ChangeType = "early_signal"
	ChangeNeutral     ChangeType = "neutral"
)

var validChangeTypes = map[ChangeType]bool{
	ChangeReinforcing: true, ChangeFriction: true,
	ChangeEarlySignal: true, ChangeNeutral: true,
}

func (c ChangeType) Valid() bool { return validChangeTypes[c] }

// TimeHorizon is the window a classified change operates on.
type TimeHorizon string

const (
	HorizonShort  TimeHorizon = "short_term"
	HorizonMedium TimeHorizon = "medium_term"
	HorizonLong   TimeHorizon = "long_term"
)

var validHorizons = map[TimeHorizon]bool{
	HorizonShort: true, HorizonMedium: true, HorizonLong: true,
}

func (t TimeHorizon) Valid() bool { return validHorizons[t] }

// Importance grades the structural weight of a classification.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

var validImportance = map[Importance]bool{
	ImportanceLow: true, ImportanceMedium: true, ImportanceHigh: true,
}

func (i Importance) Valid() bool { return validImportance[i] }

// LinkType labels the directed relation between two items.
type LinkType string

const (
	LinkReinforces  LinkType = "reinforces"
	LinkContradicts LinkType = "contradicts"
	LinkExtends     LinkType = "extends"
	LinkSupersedes  LinkType = "supersedes"
)

var validLinkTypes = map[LinkType]bool{
	LinkReinforces: true, LinkContradicts: true,
	LinkExtends: true, LinkSupersedes: true,
}

func (l LinkType) Valid() bool { return validLinkTypes[l] }

// ExposureType states how directly an instrument participates in the
// structural force.
type ExposureType string

const (
	ExposureDirect     ExposureType = "direct"
	ExposureIndirect   ExposureType = "indirect"
	ExposureContextual ExposureType = "contextual"
)

var validExposureTypes = map[ExposureType]bool{
	ExposureDirect: true, ExposureIndirect: true, ExposureContextual: true,
}

func (e ExposureType) Valid() bool { return validExposureTypes[e] }

// BusinessRole positions a company relative to the structural trend.
// "other" is the escape value for roles outside the taxonomy.
type BusinessRole string

const (
	RoleInfrastructureOperator BusinessRole = "infrastructure_operator"
	RoleUpstreamSupplier       BusinessRole = "upstream_supplier"
	RoleDownstreamAdopter      BusinessRole = "downstream_adopter"
	RolePlatformIntermediary   BusinessRole = "platform_intermediary"
	RoleRegulatedEntity        BusinessRole = "regulated_entity"
	RoleCapitalAllocator       BusinessRole = "capital_allocator"
	RoleOther                  BusinessRole = "other"
)

var validBusinessRoles = map[BusinessRole]bool{
	RoleInfrastructureOperator: true, RoleUpstreamSupplier: true,
	RoleDownstreamAdopter: true, RolePlatformIntermediary: true,
	RoleRegulatedEntity: true, RoleCapitalAllocator: true, RoleOther: true,
}

func (b BusinessRole) Valid() bool { return validBusinessRoles[b] }

// ExposureStrength grades how central the force is to the company.
type ExposureStrength string

const (
	StrengthCore       ExposureStrength = "core"
	StrengthMaterial   ExposureStrength = "material"
	StrengthPeripheral ExposureStrength = "peripheral"
)

var validStrengths = map[ExposureStrength]bool{
	StrengthCore: true, StrengthMaterial: true, StrengthPeripheral: true,
}

func (e ExposureStrength) Valid() bool { return validStrengths[e] }

// Confidence grades how well documented an exposure mapping is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

var validConfidence = map[Confidence]bool{
	ConfidenceHigh: true, ConfidenceMedium: true, ConfidenceLow: true,
}

func (c Confidence) Valid() bool { return validConfidence[c] }
