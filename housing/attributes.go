// Package housing maps caller-supplied property attributes to the canonical
// feature row consumed by the preprocessor.
package housing

import "reflect"

// Attributes is the fixed-shape attribute set of one property. A nil field is
// absent: numeric columns then default to 0 and categorical columns to null.
//
// The col tag is the training-time column name and fixes the column order. The
// form tag overrides the HTML form key, which otherwise is the column name with
// spaces and slashes replaced by underscores. The int option marks numeric
// fields parsed as integers at the form boundary.
type Attributes struct {
	MSSubClass    *float64 `col:"MS SubClass,int"`
	MSZoning      *string  `col:"MS Zoning"`
	LotFrontage   *float64 `col:"Lot Frontage"`
	LotArea       *float64 `col:"Lot Area,int"`
	Street        *string  `col:"Street"`
	LotShape      *string  `col:"Lot Shape"`
	LandContour   *string  `col:"Land Contour"`
	Utilities     *string  `col:"Utilities"`
	LotConfig     *string  `col:"Lot Config"`
	LandSlope     *string  `col:"Land Slope"`
	Neighborhood  *string  `col:"Neighborhood"`
	Condition1    *string  `col:"Condition 1"`
	Condition2    *string  `col:"Condition 2"`
	BldgType      *string  `col:"Bldg Type"`
	HouseStyle    *string  `col:"House Style"`
	OverallQual   *float64 `col:"Overall Qual,int"`
	OverallCond   *float64 `col:"Overall Cond,int"`
	YearBuilt     *float64 `col:"Year Built,int"`
	YearRemodAdd  *float64 `col:"Year Remod/Add,int" form:"Year_RemodAdd"`
	RoofStyle     *string  `col:"Roof Style"`
	RoofMatl      *string  `col:"Roof Matl"`
	Exterior1st   *string  `col:"Exterior 1st"`
	Exterior2nd   *string  `col:"Exterior 2nd"`
	MasVnrType    *string  `col:"Mas Vnr Type"`
	MasVnrArea    *float64 `col:"Mas Vnr Area"`
	ExterQual     *string  `col:"Exter Qual"`
	ExterCond     *string  `col:"Exter Cond"`
	Foundation    *string  `col:"Foundation"`
	BsmtQual      *string  `col:"Bsmt Qual"`
	BsmtCond      *string  `col:"Bsmt Cond"`
	BsmtExposure  *string  `col:"Bsmt Exposure"`
	BsmtFinType1  *string  `col:"BsmtFin Type 1"`
	BsmtFinSF1    *float64 `col:"BsmtFin SF 1"`
	BsmtFinType2  *string  `col:"BsmtFin Type 2"`
	BsmtFinSF2    *float64 `col:"BsmtFin SF 2"`
	BsmtUnfSF     *float64 `col:"Bsmt Unf SF"`
	TotalBsmtSF   *float64 `col:"Total Bsmt SF"`
	Heating       *string  `col:"Heating"`
	HeatingQC     *string  `col:"Heating QC"`
	CentralAir    *string  `col:"Central Air"`
	Electrical    *string  `col:"Electrical"`
	FirstFlrSF    *float64 `col:"1st Flr SF,int" form:"First_Flr_SF"`
	SecondFlrSF   *float64 `col:"2nd Flr SF,int" form:"Second_Flr_SF"`
	LowQualFinSF  *float64 `col:"Low Qual Fin SF,int"`
	GrLivArea     *float64 `col:"Gr Liv Area,int"`
	BsmtFullBath  *float64 `col:"Bsmt Full Bath,int"`
	BsmtHalfBath  *float64 `col:"Bsmt Half Bath,int"`
	FullBath      *float64 `col:"Full Bath,int"`
	HalfBath      *float64 `col:"Half Bath,int"`
	BedroomAbvGr  *float64 `col:"Bedroom AbvGr,int"`
	KitchenAbvGr  *float64 `col:"Kitchen AbvGr,int"`
	KitchenQual   *string  `col:"Kitchen Qual"`
	TotRmsAbvGrd  *float64 `col:"TotRms AbvGrd,int"`
	Functional    *string  `col:"Functional"`
	Fireplaces    *float64 `col:"Fireplaces,int"`
	FireplaceQu   *string  `col:"Fireplace Qu"`
	GarageType    *string  `col:"Garage Type"`
	GarageYrBlt   *float64 `col:"Garage Yr Blt"`
	GarageFinish  *string  `col:"Garage Finish"`
	GarageCars    *float64 `col:"Garage Cars,int"`
	GarageArea    *float64 `col:"Garage Area"`
	GarageQual    *string  `col:"Garage Qual"`
	GarageCond    *string  `col:"Garage Cond"`
	PavedDrive    *string  `col:"Paved Drive"`
	WoodDeckSF    *float64 `col:"Wood Deck SF,int"`
	OpenPorchSF   *float64 `col:"Open Porch SF,int"`
	EnclosedPorch *float64 `col:"Enclosed Porch,int"`
	ThreeSsnPorch *float64 `col:"3Ssn Porch,int" form:"ThreeSsn_Porch"`
	ScreenPorch   *float64 `col:"Screen Porch,int"`
	PoolArea      *float64 `col:"Pool Area,int"`
	MiscVal       *float64 `col:"Misc Val,int"`
	MoSold        *float64 `col:"Mo Sold,int"`
	YrSold        *float64 `col:"Yr Sold,int"`
	SaleType      *string  `col:"Sale Type"`
	SaleCondition *string  `col:"Sale Condition"`
}

// Ptr returns a pointer to v, for filling Attributes fields.
func Ptr[T any](v T) *T { return &v }

// Values returns the attribute set keyed by canonical column name. Absent
// fields map to nil.
func (a *Attributes) Values() map[string]any {
	rv := reflect.ValueOf(a).Elem()
	values := make(map[string]any, len(catalog))
	for _, col := range catalog {
		field := rv.Field(col.field)
		if field.IsNil() {
			values[col.Name] = nil
			continue
		}
		values[col.Name] = field.Elem().Interface()
	}
	return values
}

// Row builds the feature row for this attribute set.
func (a *Attributes) Row() FeatureRow {
	return BuildRow(a.Values())
}
