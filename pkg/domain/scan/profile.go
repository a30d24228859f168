package scan

// Profile is a named bundle of scanning modules.
type Profile string

const (
	ProfileQuick    Profile = "QUICK"
	ProfileStandard Profile = "STANDARD"
	ProfileDeep     Profile = "DEEP"
	ProfileCustom   Profile = "CUSTOM"
)

// IsValid returns true if the profile is known.
func (p Profile) IsValid() bool {
	switch p {
	case ProfileQuick, ProfileStandard, ProfileDeep, ProfileCustom:
		return true
	}
	return false
}

// profileModules maps each profile to the engine modules it runs. The lists
// mirror the engine's own profile registry; CUSTOM carries an explicit module
// list on the scan instead.
var profileModules = map[Profile][]string{
	ProfileQuick: {
		"dns_enumerator",
		"ssl_analyzer",
		"tech_detector",
	},
	ProfileStandard: {
		"dns_enumerator",
		"port_scanner",
		"ssl_analyzer",
		"web_crawler",
		"tech_detector",
		"admin_detector",
		"recon_module",
	},
	ProfileDeep: {
		"dns_enumerator",
		"port_scanner",
		"ssl_analyzer",
		"web_crawler",
		"tech_detector",
		"waf_detector",
		"recon_module",
		"vuln_checker",
		"subdomain_takeover",
		"admin_detector",
		"nvd_cve_matcher",
		"api_discovery",
		"api_security",
	},
}

// Modules returns the module list for the profile. CUSTOM returns nil; the
// caller supplies the explicit list.
func (p Profile) Modules() []string {
	mods, ok := profileModules[p]
	if !ok {
		return nil
	}
	out := make([]string, len(mods))
	copy(out, mods)
	return out
}
