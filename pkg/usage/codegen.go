package usage

import "strings"

// CodeGenerator ties an annotation processor artifact to the annotations that trigger it.
type CodeGenerator struct {
	Name                 string   `yaml:"name" json:"name"`
	GeneratorCoordinates string   `yaml:"generatorCoordinates" json:"generatorCoordinates"`
	AnnotationNames      []string `yaml:"annotationNames" json:"annotationNames"`
}

var daggerAnnotations = []string{
	"javax.inject.Inject",
	"dagger.Binds",
	"dagger.BindsInstance",
	"dagger.Component",
	"dagger.Module",
	"dagger.assisted.Assisted",
	"dagger.assisted.AssistedFactory",
	"dagger.assisted.AssistedInject",
	"dagger.multibindings.IntoMap",
	"dagger.multibindings.IntoSet",
	"com.squareup.anvil.annotations.ContributesTo",
	"com.squareup.anvil.annotations.MergeComponent",
	"com.squareup.anvil.annotations.MergeSubcomponent",
}

// DefaultCodeGenerators are the processors recognised without configuration.
var DefaultCodeGenerators = []CodeGenerator{
	{Name: "Dagger", GeneratorCoordinates: "com.google.dagger:dagger-compiler", AnnotationNames: daggerAnnotations},
	{Name: "Dagger Android", GeneratorCoordinates: "com.google.dagger:dagger-android-processor", AnnotationNames: []string{
		"dagger.android.ContributesAndroidInjector",
	}},
	{Name: "Dagger Hilt", GeneratorCoordinates: "com.google.dagger:hilt-compiler", AnnotationNames: []string{
		"dagger.hilt.DefineComponent",
		"dagger.hilt.EntryPoint",
		"dagger.hilt.InstallIn",
	}},
	{Name: "Dagger Hilt Android", GeneratorCoordinates: "com.google.dagger:hilt-android-compiler", AnnotationNames: []string{
		"dagger.hilt.DefineComponent",
		"dagger.hilt.EntryPoint",
		"dagger.hilt.InstallIn",
		"dagger.hilt.android.AndroidEntryPoint",
		"dagger.hilt.android.HiltAndroidApp",
		"dagger.hilt.android.WithFragmentBindings",
	}},
	{Name: "Moshi Kotlin codegen", GeneratorCoordinates: "com.squareup.moshi:moshi-kotlin-codegen", AnnotationNames: []string{
		"com.squareup.moshi.Json",
		"com.squareup.moshi.JsonClass",
	}},
	{Name: "Room", GeneratorCoordinates: "androidx.room:room-compiler", AnnotationNames: []string{
		"androidx.room.Database",
	}},
	{Name: "AutoService", GeneratorCoordinates: "com.google.auto.service:auto-service", AnnotationNames: []string{
		"com.google.auto.service.AutoService",
	}},
	{Name: "AutoService KSP", GeneratorCoordinates: "dev.zacsweers.autoservice:compiler", AnnotationNames: []string{
		"com.google.auto.service.AutoService",
	}},
	{Name: "AutoFactory", GeneratorCoordinates: "com.google.auto.factory:auto-factory", AnnotationNames: []string{
		"com.google.auto.factory.AutoFactory",
	}},
	{Name: "AutoValue", GeneratorCoordinates: "com.google.auto.value:auto-value", AnnotationNames: []string{
		"com.google.auto.value.AutoValue",
		"com.google.auto.value.AutoAnnotation",
		"com.google.auto.value.AutoOneOf",
	}},
	{Name: "Inflation Inject", GeneratorCoordinates: "app.cash.inject:inflation-inject-processor", AnnotationNames: []string{
		"app.cash.inject.inflation.InflationInject",
		"app.cash.inject.inflation.InflationModule",
		"app.cash.inject.inflation.ViewFactory",
	}},
	{Name: "Tangle Core", GeneratorCoordinates: "com.rickbusarow.tangle:tangle-compiler", AnnotationNames: []string{
		"tangle.inject.TangleParam",
		"tangle.inject.TangleScope",
	}},
}

// CodeGenerators indexes generators by artifact coordinates (group:artifact).
type CodeGenerators map[string]CodeGenerator

// NewCodeGenerators merges the defaults with additional generators; later entries win.
func NewCodeGenerators(additional ...CodeGenerator) CodeGenerators {
	out := make(CodeGenerators, len(DefaultCodeGenerators)+len(additional))
	for _, g := range DefaultCodeGenerators {
		out[g.GeneratorCoordinates] = g
	}
	for _, g := range additional {
		out[g.GeneratorCoordinates] = g
	}
	return out
}

// Lookup finds the generator for coordinates, ignoring any version suffix.
func (c CodeGenerators) Lookup(coordinates string) (CodeGenerator, bool) {
	parts := strings.SplitN(coordinates, ":", 3)
	if len(parts) >= 2 {
		coordinates = parts[0] + ":" + parts[1]
	}
	g, ok := c[coordinates]
	return g, ok
}
