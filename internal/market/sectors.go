package market

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SectorOther is returned for tickers outside the mapping.
const SectorOther = "Khác"

// Built-in sector mapping for the commonly tracked VN tickers.
// A YAML file can extend or override it via LoadSectorFile.
var sectorMapping = map[string]string{
	// Ngân hàng
	"VCB": "Ngân hàng", "TCB": "Ngân hàng", "MBB": "Ngân hàng", "VPB": "Ngân hàng",
	"ACB": "Ngân hàng", "CTG": "Ngân hàng", "BID": "Ngân hàng", "STB": "Ngân hàng",
	"HDB": "Ngân hàng", "TPB": "Ngân hàng", "SHB": "Ngân hàng", "EIB": "Ngân hàng",
	"MSB": "Ngân hàng", "OCB": "Ngân hàng", "VIB": "Ngân hàng", "LPB": "Ngân hàng",
	"SSB": "Ngân hàng", "BAB": "Ngân hàng", "NVB": "Ngân hàng", "ABB": "Ngân hàng",

	// Bất động sản
	"VHM": "Bất động sản", "VIC": "Bất động sản", "NVL": "Bất động sản",
	"PDR": "Bất động sản", "DXG": "Bất động sản", "DIG": "Bất động sản",
	"NLG": "Bất động sản", "KDH": "Bất động sản", "HDG": "Bất động sản",
	"CEO": "Bất động sản", "BCM": "Bất động sản", "HDC": "Bất động sản",
	"KBC": "Bất động sản", "DXS": "Bất động sản", "SCR": "Bất động sản",
	"IDC": "Bất động sản",

	// Thép
	"HPG": "Thép", "HSG": "Thép", "NKG": "Thép", "POM": "Thép", "TLH": "Thép", "VIS": "Thép",

	// Thực phẩm
	"VNM": "Thực phẩm", "MSN": "Thực phẩm", "SAB": "Thực phẩm", "MCH": "Thực phẩm",
	"KDC": "Thực phẩm", "QNS": "Thực phẩm", "LSS": "Thực phẩm",

	// Bán lẻ
	"MWG": "Bán lẻ", "FRT": "Bán lẻ", "PNJ": "Bán lẻ", "DGW": "Bán lẻ", "VGC": "Bán lẻ",

	// Dầu khí
	"GAS": "Dầu khí", "PLX": "Dầu khí", "PVD": "Dầu khí", "PVS": "Dầu khí", "PVG": "Dầu khí",

	// Điện
	"POW": "Điện", "NT2": "Điện", "PC1": "Điện", "REE": "Điện",

	// Xây dựng
	"CTD": "Xây dựng", "HBC": "Xây dựng", "FCN": "Xây dựng", "LCG": "Xây dựng",
	"HT1": "Xây dựng", "VCG": "Xây dựng",

	// Chứng khoán
	"SSI": "Chứng khoán", "VCI": "Chứng khoán", "VND": "Chứng khoán", "HCM": "Chứng khoán",
	"FTS": "Chứng khoán", "MBS": "Chứng khoán", "VIX": "Chứng khoán", "AGR": "Chứng khoán",
	"SHS": "Chứng khoán",

	// Công nghệ
	"FPT": "Công nghệ", "CMG": "Công nghệ", "VGI": "Công nghệ", "ITD": "Công nghệ",

	// Hàng không
	"HVN": "Hàng không", "VJC": "Hàng không",

	// Logistics / vận tải
	"GMD": "Vận tải", "HAH": "Logistics", "TCL": "Logistics", "PVT": "Vận tải", "VSC": "Vận tải",

	// Dược phẩm
	"DHG": "Dược phẩm", "DMC": "Dược phẩm", "IMP": "Dược phẩm", "DCL": "Dược phẩm",

	// Cao su
	"GVR": "Cao su", "DPR": "Cao su", "PHR": "Cao su",

	// Thủy sản
	"VHC": "Thủy sản", "ANV": "Thủy sản", "IDI": "Thủy sản",

	// Nông nghiệp
	"HAG": "Nông nghiệp", "HNG": "Nông nghiệp", "SBT": "Nông nghiệp",
}

// Sector returns the sector for a ticker, SectorOther when unmapped.
func Sector(ticker string) string {
	if s, ok := sectorMapping[strings.ToUpper(strings.TrimSpace(ticker))]; ok {
		return s
	}
	return SectorOther
}

// AllSectors returns the sorted list of distinct sectors.
func AllSectors() []string {
	seen := map[string]bool{}
	for _, s := range sectorMapping {
		seen[s] = true
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// TickersBySector returns the sorted tickers mapped to sector.
func TickersBySector(sector string) []string {
	var out []string
	for t, s := range sectorMapping {
		if s == sector {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// LoadSectorFile merges ticker->sector pairs from a YAML file into the
// mapping. Entries in the file win over the built-ins.
func LoadSectorFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read sector file: %w", err)
	}
	var overrides map[string]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parse sector file: %w", err)
	}
	for t, s := range overrides {
		sectorMapping[strings.ToUpper(strings.TrimSpace(t))] = s
	}
	return nil
}
