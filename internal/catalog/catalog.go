// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package catalog holds the default table for every parameter the vCornea
// batch script understands. The table is the baseline for change detection
// and supplies the declaration order used when rendering parameter files,
// so a generated Parameters.py reads the same way the hand-written ones do.
package catalog

import (
	"fmt"

	"vcornea-orchestrator/internal/params"
)

// Entry describes one catalog parameter.
type Entry struct {
	Name        string
	Group       string
	Default     params.Value
	Description string
}

// Parameter groups, following the sections of the simulation's own
// parameter files.
const (
	GroupStem        = "stem"
	GroupBasal       = "basal"
	GroupWing        = "wing"
	GroupSuperficial = "superficial"
	GroupMovement    = "movement"
	GroupEGF         = "egf"
	GroupLinkWall    = "link_wall"
	GroupLinkSuper   = "link_super"
	GroupInjury      = "injury"
	GroupAblation    = "ablation"
	GroupChemical    = "chemical"
	GroupControl     = "control"
	GroupOutput      = "output"
	GroupTime        = "time"
)

var entries = []Entry{
	// STEM cell parameters.
	{"InitSTEM_LambdaSurface", GroupStem, params.Float(2.0), "Surface constraint strength for stem cells"},
	{"InitSTEM_TargetSurface", GroupStem, params.Float(18.0), "Target surface area for stem cells"},
	{"InitSTEM_LambdaVolume", GroupStem, params.Float(2.0), "Volume constraint strength for stem cells"},
	{"InitSTEM_TargetVolume", GroupStem, params.Float(25.0), "Target volume for stem cells"},
	{"DensitySTEM_HalfMaxValue", GroupStem, params.Int(125), "Density at which stem proliferation halves"},
	{"EGF_STEM_HalfMaxValue", GroupStem, params.Float(3.5), "EGF concentration at half-max stem response"},
	{"STEM_beta_EGF", GroupStem, params.Int(1), "EGF response coefficient for stem cells"},
	{"InitSTEM_LambdaChemo", GroupStem, params.Float(100.0), "Chemotaxis strength for stem cells"},

	// BASAL cell parameters.
	{"InitBASAL_LambdaSurface", GroupBasal, params.Float(2.0), "Surface constraint strength for basal cells"},
	{"InitBASAL_TargetSurface", GroupBasal, params.Float(20.0), "Target surface area for basal cells"},
	{"InitBASAL_LambdaVolume", GroupBasal, params.Float(2.0), "Volume constraint strength for basal cells"},
	{"InitBASAL_TargetVolume", GroupBasal, params.Float(25.0), "Target volume for basal cells"},
	{"InitBASAL_LambdaChemo", GroupBasal, params.Float(1000.0), "Chemotaxis strength for basal cells"},
	{"InitBASAL_Division", GroupBasal, params.Float(20000.0), "Division threshold for basal cells"},
	{"DensityBASAL_HalfMaxValue", GroupBasal, params.Int(125), "Density at which basal proliferation halves"},
	{"EGF_BASAL_HalfMaxValue", GroupBasal, params.Float(7.0), "EGF concentration at half-max basal response"},
	{"BASAL_beta_EGF", GroupBasal, params.Int(1), "EGF response coefficient for basal cells"},

	// WING cell parameters.
	{"InitWING_LambdaSurface", GroupWing, params.Float(5.0), "Surface constraint strength for wing cells"},
	{"InitWING_TargetSurface", GroupWing, params.Int(25), "Target surface area for wing cells"},
	{"InitWING_LambdaVolume", GroupWing, params.Float(2.0), "Volume constraint strength for wing cells"},
	{"InitWING_TargetVolume", GroupWing, params.Float(25.0), "Target volume for wing cells"},
	{"InitWING_EGFLambdaChemo", GroupWing, params.Float(20.0), "EGF chemotaxis strength for wing cells"},

	// SUPERFICIAL cell parameters.
	{"InitSUPER_LambdaSurface", GroupSuperficial, params.Float(5.0), "Surface constraint strength for superficial cells"},
	{"InitSUPER_TargetSurface", GroupSuperficial, params.Float(25.0), "Target surface area for superficial cells"},
	{"InitSUPER_LambdaVolume", GroupSuperficial, params.Float(5.0), "Volume constraint strength for superficial cells"},
	{"InitSUPER_TargetVolume", GroupSuperficial, params.Float(25.0), "Target volume for superficial cells"},
	{"EGF_SUPERDiffCoef", GroupSuperficial, params.Float(20.0), "EGF diffusion coefficient through superficial layer"},

	// Movement bias field.
	{"MovementBiasScreteAmount", GroupMovement, params.Float(5.0), "Movement bias field secretion amount"},
	{"MovementBiasUptake", GroupMovement, params.Float(1.0), "Movement bias field uptake rate"},

	// EGF field.
	{"EGF_ScreteAmount", GroupEGF, params.Float(1.0), "EGF secretion amount"},
	{"EGF_FieldUptakeBASAL", GroupEGF, params.Float(0.0), "EGF field uptake by basal cells"},
	{"EGF_FieldUptakeSTEM", GroupEGF, params.Float(0.0), "EGF field uptake by stem cells"},
	{"EGF_FieldUptakeSuper", GroupEGF, params.Float(0.0), "EGF field uptake by superficial cells"},
	{"EGF_FieldUptakeWing", GroupEGF, params.Float(0.0), "EGF field uptake by wing cells"},
	{"EGF_GlobalDecay", GroupEGF, params.Float(0.5), "Global EGF decay rate"},

	// SUPER-WALL links.
	{"LINKWALL_lambda_distance", GroupLinkWall, params.Int(50), "Wall link spring strength"},
	{"LINKWALL_target_distance", GroupLinkWall, params.Int(3), "Wall link rest length"},
	{"LINKWALL_max_distance", GroupLinkWall, params.Int(1000), "Wall link breaking distance"},

	// SUPER-SUPER links.
	{"LINKSUPER_lambda_distance", GroupLinkSuper, params.Int(50), "Superficial link spring strength"},
	{"LINKSUPER_target_distance", GroupLinkSuper, params.Int(3), "Superficial link rest length"},
	{"LINKSUPER_max_distance", GroupLinkSuper, params.Int(1000), "Superficial link breaking distance"},
	{"AutoAdjustLinks", GroupLinkSuper, params.Bool(true), "Adjust link tension automatically"},
	{"Lambda_link_adjustment", GroupLinkSuper, params.Float(1.0), "Link adjustment strength"},
	{"Tension_link_SS", GroupLinkSuper, params.Float(1.0), "Superficial-superficial link tension"},

	// Injury.
	{"IsInjury", GroupInjury, params.Bool(true), "Whether the run includes an injury"},
	{"InjuryType", GroupInjury, params.Bool(false), "Injury mechanism: False is ablation, True is chemical"},
	{"InjuryTime", GroupInjury, params.Int(500), "Simulation step at which the injury occurs"},

	// Ablation injury.
	{"InjuryX_Center", GroupAblation, params.Int(150), "Ablation injury center, x coordinate"},
	{"InjuryY_Center", GroupAblation, params.Int(60), "Ablation injury center, y coordinate"},
	{"InjuryRadius", GroupAblation, params.Int(25), "Ablation injury radius"},

	// Chemical (SLS) injury.
	{"SLS_Injury", GroupChemical, params.Bool(true), "Whether SLS is applied on chemical injury"},
	{"SLS_X_Center", GroupChemical, params.Int(100), "SLS application center, x coordinate"},
	{"SLS_Y_Center", GroupChemical, params.Int(75), "SLS application center, y coordinate"},
	{"SLS_Concentration", GroupChemical, params.Float(750.0), "Initial SLS concentration"},
	{"SLS_Gaussian_pulse", GroupChemical, params.Bool(false), "SLS delivery: False is coating, True is droplet"},
	{"SLS_STEMDiffCoef", GroupChemical, params.Float(5.0), "SLS diffusion coefficient through stem cells"},
	{"SLS_BASALDiffCoef", GroupChemical, params.Float(5.0), "SLS diffusion coefficient through basal cells"},
	{"SLS_WINGDiffCoef", GroupChemical, params.Float(5.0), "SLS diffusion coefficient through wing cells"},
	{"SLS_SUPERDiffCoef", GroupChemical, params.Float(5.0), "SLS diffusion coefficient through superficial cells"},
	{"SLS_MEMBDiffCoef", GroupChemical, params.Float(5.0), "SLS diffusion coefficient through membrane"},
	{"SLS_LIMBDiffCoef", GroupChemical, params.Float(5.0), "SLS diffusion coefficient through limbus"},
	{"SLS_TEARDiffCoef", GroupChemical, params.Float(5.0), "SLS diffusion coefficient through tear film"},
	{"SLS_Threshold_Method", GroupChemical, params.Bool(true), "Use threshold-based SLS damage"},
	{"SLS_Threshold", GroupChemical, params.Float(2.0), "SLS damage threshold"},

	// Function control switches.
	{"GrowthControl", GroupControl, params.Bool(true), "Enable growth control"},
	{"MitosisControl", GroupControl, params.Bool(true), "Enable mitosis control"},
	{"DeathControl", GroupControl, params.Bool(true), "Enable death control"},
	{"DifferentiationControl", GroupControl, params.Bool(true), "Enable differentiation control"},

	// Plot and data collection.
	{"CC3D_PLOT", GroupOutput, params.Bool(true), "Enable in-simulation plot windows"},
	{"CellCount", GroupOutput, params.Bool(true), "Write the cell count time series"},
	{"PressureTracker", GroupOutput, params.Bool(true), "Track cell pressure"},
	{"EGF_SeenByCell", GroupOutput, params.Bool(true), "Record EGF seen by each cell"},
	{"SLS_SeenByCell", GroupOutput, params.Bool(true), "Record SLS seen by each cell"},
	{"CenterBias", GroupOutput, params.Bool(false), "Record center bias diagnostics"},
	{"ThicknessPlot", GroupOutput, params.Bool(true), "Write the tissue thickness series"},
	{"SurfactantTracking", GroupOutput, params.Bool(true), "Track surfactant levels"},
	{"SnapShot", GroupOutput, params.Bool(false), "Save lattice snapshots"},
	{"SnapShot_time", GroupOutput, params.Int(10), "Steps between lattice snapshots"},

	// Simulation length.
	{"SimTime", GroupTime, params.Int(7500), "Number of simulation steps"},
}

var byName = func() map[string]Entry {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		if _, dup := m[e.Name]; dup {
			panic(fmt.Sprintf("catalog: duplicate parameter %s", e.Name))
		}
		m[e.Name] = e
	}
	return m
}()

// Defaults returns the default table as a fresh parameter set.
func Defaults() params.Set {
	s := make(params.Set, len(entries))
	for _, e := range entries {
		s[e.Name] = e.Default
	}
	return s
}

// Order returns every catalog parameter name in declaration order.
func Order() []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// Entries returns the full catalog in declaration order.
func Entries() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Lookup returns the catalog entry for a parameter name.
func Lookup(name string) (Entry, bool) {
	e, ok := byName[name]
	return e, ok
}

// Len returns the number of catalog parameters.
func Len() int { return len(entries) }
