package portal

import "strings"

// Provider is a federated identity provider (ENT).
type Provider struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var providers = []Provider{
	{ID: "ac_reunion", Name: "Académie de La Réunion"},
	{ID: "ac_orleans_tours", Name: "Académie Orléans-Tours"},
	{ID: "ac_rennes", Name: "Académie de Rennes"},
	{ID: "ac_reims", Name: "Académie de Reims"},
	{ID: "ac_montpellier", Name: "Académie de Montpellier"},
	{ID: "arsene76", Name: "Arsene76 (Seine-Maritime)"},
	{ID: "atrium_sud", Name: "Atrium Sud (PACA)"},
	{ID: "cas_kosmos", Name: "CAS Kosmos"},
	{ID: "eclat_bfc", Name: "Eclat-BFC (Bourgogne-Franche-Comté)"},
	{ID: "ent27", Name: "ENT27 (Eure)"},
	{ID: "ent77", Name: "ENT77 (Seine-et-Marne)"},
	{ID: "ent_94", Name: "ENT94 (Val-de-Marne)"},
	{ID: "ent_creuse", Name: "ENT Creuse"},
	{ID: "ent_elyco", Name: "e-lyco (Pays de la Loire)"},
	{ID: "ent_essonne", Name: "ENT Essonne"},
	{ID: "ent_hdf", Name: "ENT Hauts-de-France"},
	{ID: "ent_somme", Name: "ENT Somme"},
	{ID: "ent_var", Name: "ENT Var"},
	{ID: "l_normandie", Name: "L'Educ de Normandie"},
	{ID: "laclasse_lyon", Name: "Laclasse.com (Lyon)"},
	{ID: "lyceeconnecte_aquitaine", Name: "Lycée Connecté (Nouvelle-Aquitaine)"},
	{ID: "lyceeconnecte_edu", Name: "Lycée Connecté"},
	{ID: "mon_bureau_numerique", Name: "Mon Bureau Numérique (Grand Est)"},
	{ID: "monlycee_net", Name: "Mon lycée.net (Île-de-France)"},
	{ID: "neotech_occitanie", Name: "Néo (Occitanie)"},
	{ID: "paris_classe_numerique", Name: "Paris Classe Numérique"},
	{ID: "toutatice", Name: "Toutatice (Bretagne)"},
	{ID: "webcollege_cantal", Name: "Webcollège Cantal"},
}

// Providers returns the supported ENTs. The slice is a copy.
func Providers() []Provider {
	return append([]Provider(nil), providers...)
}

// LookupProvider finds a provider by id, ignoring case.
func LookupProvider(id string) (Provider, bool) {
	id = strings.TrimSpace(id)
	for _, p := range providers {
		if strings.EqualFold(p.ID, id) {
			return p, true
		}
	}
	return Provider{}, false
}
