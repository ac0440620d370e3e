package models

// SubcommunityID is the slug of a catalog entry.
type SubcommunityID string

// Subcommunity is a fixed topical category for community messages.
type Subcommunity struct {
	ID          SubcommunityID `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Icon        string         `json:"icon"`
	Color       string         `json:"color"`
}

// SubcommunityCounts are the live figures shown next to a catalog entry.
type SubcommunityCounts struct {
	ID           SubcommunityID `json:"id" db:"id"`
	MessageCount int            `json:"messageCount" db:"message_count"`
	UserCount    int            `json:"userCount" db:"user_count"`
}

// SubcommunityWithCounts is a catalog entry augmented at read time.
type SubcommunityWithCounts struct {
	Subcommunity
	MessageCount int `json:"messageCount"`
	UserCount    int `json:"userCount"`
}

var catalog = []Subcommunity{
	{ID: "autism-spectrum", Name: "Autism Spectrum", Description: "Support and shared experience for autistic people and their families.", Icon: "🧩", Color: "bg-blue-100 text-blue-800"},
	{ID: "adhd", Name: "ADHD", Description: "Focus strategies, routines and encouragement for ADHD.", Icon: "⚡", Color: "bg-yellow-100 text-yellow-800"},
	{ID: "dyslexia", Name: "Dyslexia", Description: "Reading tools, tips and stories about living with dyslexia.", Icon: "📖", Color: "bg-green-100 text-green-800"},
	{ID: "dyscalculia", Name: "Dyscalculia", Description: "Working with numbers, money and time when maths is hard.", Icon: "🔢", Color: "bg-purple-100 text-purple-800"},
	{ID: "dyspraxia", Name: "Dyspraxia", Description: "Coordination, planning and everyday practical help.", Icon: "🤸", Color: "bg-pink-100 text-pink-800"},
	{ID: "sensory-processing", Name: "Sensory Processing", Description: "Managing sensory overload and building calm environments.", Icon: "🌈", Color: "bg-indigo-100 text-indigo-800"},
	{ID: "learning-disabilities", Name: "Learning Disabilities", Description: "Learning support, schooling and advocacy.", Icon: "🎓", Color: "bg-teal-100 text-teal-800"},
	{ID: "developmental-delays", Name: "Developmental Delays", Description: "Milestones, therapies and patience for developing at your own pace.", Icon: "🌱", Color: "bg-lime-100 text-lime-800"},
	{ID: "speech-language", Name: "Speech & Language", Description: "Communication aids, speech therapy and language practice.", Icon: "💬", Color: "bg-orange-100 text-orange-800"},
	{ID: "motor-skills", Name: "Motor Skills", Description: "Fine and gross motor activities and adaptive tools.", Icon: "✋", Color: "bg-red-100 text-red-800"},
	{ID: "general-support", Name: "General Support", Description: "Anything else: a friendly place for caregivers, guardians and patients.", Icon: "💛", Color: "bg-amber-100 text-amber-800"},
}

// Catalog returns a copy of the compiled-in subcommunity list in display order.
func Catalog() []Subcommunity {
	out := make([]Subcommunity, len(catalog))
	copy(out, catalog)
	return out
}

// LookupSubcommunity finds a catalog entry by slug.
func LookupSubcommunity(id SubcommunityID) (Subcommunity, bool) {
	for _, s := range catalog {
		if s.ID == id {
			return s, true
		}
	}
	return Subcommunity{}, false
}

func (id SubcommunityID) Valid() bool {
	_, ok := LookupSubcommunity(id)
	return ok
}
