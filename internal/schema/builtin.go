package schema

// builtin.go registers the entity types the marketplace moderates.
//
// The dedupe key for each type is the composite of its Identity fields; for
// listings that is (title, city, street), which is how operators recognize a
// re-submitted ad across bulk files.

func init() {
	Register(EntityType{
		Key:   "listing",
		Label: "Listings",
		Fields: []FieldSpec{
			{Name: "title", Type: FieldText, Required: true, Identity: true},
			{Name: "price", Type: FieldNumeric, Required: true},
			{Name: "city", Type: FieldText, Required: true, Identity: true},
			{Name: "street", Type: FieldText, Identity: true},
			{Name: "listing_type", Type: FieldEnum, Required: true, EnumValues: []string{"sale", "rent"}},
			{Name: "rooms", Type: FieldNumeric},
			{Name: "floor", Type: FieldNumeric},
			{Name: "size_sqm", Type: FieldNumeric},
			{Name: "description", Type: FieldText},
			{Name: "available_from", Type: FieldDate},
			{Name: "negotiable", Type: FieldBool},
			{Name: "attributes", Kind: NestedMap},
			{Name: "images", Kind: ImageSet},
			{Name: "features", Kind: FeatureMap},
		},
	})

	Register(EntityType{
		Key:   "city",
		Label: "Cities",
		Fields: []FieldSpec{
			{Name: "name", Type: FieldText, Required: true, Identity: true},
			{Name: "district", Type: FieldText},
		},
	})

	Register(EntityType{
		Key:   "street",
		Label: "Streets",
		Fields: []FieldSpec{
			{Name: "name", Type: FieldText, Required: true, Identity: true},
			{Name: "city", Type: FieldText, Required: true, Identity: true},
		},
	})
}
