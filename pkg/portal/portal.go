// Package portal knows the APT.i site: where each page template lives and
// how a browser session logs in.
package portal

import "strings"

// BaseURL is the portal origin.
const BaseURL = "https://xn--3-v85erd9xh0vctai95f4a637hvqbda945jmkaw30h.apti.co.kr"

// Page is one known page of the portal. Name is stable and doubles as the
// snapshot file name.
type Page struct {
	Name string
	Path string
}

// URL resolves the page against base, or BaseURL when base is empty.
func (p Page) URL(base string) string {
	if base == "" {
		base = BaseURL
	}
	return strings.TrimRight(base, "/") + p.Path
}

var (
	PageLogin        = Page{Name: "login", Path: "/aptHome/"}
	PageUnit         = Page{Name: "unit", Path: "/aptHome/subpage/?cate_code=AAEB"}
	PageCost         = Page{Name: "cost", Path: "/apti/manage/manage_cost.asp?cate_code=AAEB"}
	PageEnergy       = Page{Name: "energy", Path: "/apti/manage/manage_energy.asp?cate_code=AAEC"}
	PageEnergyDetail = Page{Name: "energy_detail", Path: "/apti/manage/manage_energyGogi.asp"}
	PageHistory      = Page{Name: "history", Path: "/apti/manage/manage_check.asp?cate_code=AAFH"}
)
