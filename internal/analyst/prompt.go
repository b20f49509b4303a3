package analyst

import (
	"fmt"
	"strings"

	"github.com/quangtb/stockvn/internal/indicators"
)

// Fundamentals carries the optional fundamental context for the report.
type Fundamentals struct {
	HasData       bool
	Source        string
	EPS           float64
	PE            float64
	PB            float64
	ROE           float64
	RevenueBn     float64 // tỷ VNĐ
	NetIncomeBn   float64 // tỷ VNĐ
	RevenueGrowth float64 // %
	ProfitGrowth  float64 // %
}

func yn(b bool) string {
	if b {
		return "Có"
	}
	return "Không"
}

func orNA(has bool, v float64, format string) string {
	if !has {
		return "N/A"
	}
	return fmt.Sprintf(format, v)
}

// BuildPrompt renders the Vietnamese technical-analysis report prompt
// from the indicator summary and optional fundamentals. Long only: the
// VN market has no short selling.
func BuildPrompt(ticker string, s indicators.Summary, f Fundamentals) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Bạn là một chuyên gia phân tích kỹ thuật chứng khoán Việt Nam với hơn 20 năm kinh nghiệm.\n\n")
	fmt.Fprintf(&b, "DỮ LIỆU PHÂN TÍCH CHO MÃ %s:\n", ticker)
	fmt.Fprintf(&b, "- Ngày phân tích: %s\n", s.AnalysisDate)
	fmt.Fprintf(&b, "- Số ngày dữ liệu: %d ngày\n\n", s.DataDays)

	fmt.Fprintf(&b, "GIÁ:\n- Giá hiện tại: %.2f\n\n", s.CurrentPrice)

	fmt.Fprintf(&b, "ĐƯỜNG TRUNG BÌNH ĐỘNG:\n")
	fmt.Fprintf(&b, "- MA20: %.1f\n- MA50: %.1f\n- MA200: %.1f\n", s.MA20, s.MA50, s.MA200)
	fmt.Fprintf(&b, "- Sắp xếp MA: %s\n", s.MAAlignment)
	fmt.Fprintf(&b, "- Giá trên MA20: %s\n", yn(s.PriceAboveMA20))
	fmt.Fprintf(&b, "- MA20 trên MA50: %s\n", yn(s.MA20AboveMA50))
	fmt.Fprintf(&b, "- MA50 trên MA200: %s\n", yn(s.MA50AboveMA200))
	fmt.Fprintf(&b, "- Độ dốc MA200 (60 ngày): %.2f%%\n\n", s.MA200Slope60D)

	fmt.Fprintf(&b, "CHỈ BÁO ĐỘNG LƯỢNG:\n")
	fmt.Fprintf(&b, "- RSI (14): %.1f\n- MACD: %.2f\n- MACD Signal: %.2f\n- MACD Histogram: %.2f\n\n",
		s.RSI, s.MACD, s.MACDSignal, s.MACDHistogram)

	fmt.Fprintf(&b, "KHỐI LƯỢNG:\n")
	fmt.Fprintf(&b, "- Volume Ratio (so với TB 20 ngày): %.2f\n- Volume Spike: %s\n\n",
		s.VolumeRatio, yn(s.VolumeSpike))

	fmt.Fprintf(&b, "XU HƯỚNG:\n- Xu hướng hiện tại: %s\n- Pha Wyckoff: %s\n\n", s.Trend, s.WyckoffPhase)

	fmt.Fprintf(&b, "VÙNG GIÁ QUAN TRỌNG:\n- Hỗ trợ: %.1f\n- Kháng cự: %.1f\n\n", s.Support, s.Resistance)

	fmt.Fprintf(&b, "MỨC GIAO DỊCH ĐỀ XUẤT:\n")
	fmt.Fprintf(&b, "- Vùng mua: %.1f - %.1f\n", s.EntryLow, s.EntryHigh)
	fmt.Fprintf(&b, "- Stop Loss: %.1f\n", s.StopLoss)
	fmt.Fprintf(&b, "- TP1: %.1f\n- TP2: %.1f\n- TP3: %.1f\n", s.TP1, s.TP2, s.TP3)
	fmt.Fprintf(&b, "- Khuyến nghị kỹ thuật: %s\n\n", s.Recommendation)

	fmt.Fprintf(&b, "PHÂN TÍCH CƠ BẢN (FUNDAMENTAL):\n")
	fmt.Fprintf(&b, "- Có dữ liệu: %s\n", yn(f.HasData))
	src := f.Source
	if src == "" {
		src = "N/A"
	}
	fmt.Fprintf(&b, "- Nguồn: %s\n", src)
	fmt.Fprintf(&b, "- EPS: %s\n", orNA(f.HasData, f.EPS, "%.0f"))
	fmt.Fprintf(&b, "- P/E: %s\n", orNA(f.HasData, f.PE, "%.2f"))
	fmt.Fprintf(&b, "- P/B: %s\n", orNA(f.HasData, f.PB, "%.2f"))
	fmt.Fprintf(&b, "- ROE: %s\n", orNA(f.HasData, f.ROE, "%.1f%%"))
	fmt.Fprintf(&b, "- Doanh thu (tỷ VND): %s\n", orNA(f.HasData, f.RevenueBn, "%.1f"))
	fmt.Fprintf(&b, "- Lợi nhuận ròng (tỷ VND): %s\n", orNA(f.HasData, f.NetIncomeBn, "%.1f"))
	fmt.Fprintf(&b, "- Tăng trưởng doanh thu: %s\n", orNA(f.HasData, f.RevenueGrowth, "%.1f%%"))
	fmt.Fprintf(&b, "- Tăng trưởng lợi nhuận: %s\n\n", orNA(f.HasData, f.ProfitGrowth, "%.1f%%"))

	b.WriteString(`---

YÊU CẦU: Viết báo cáo phân tích kỹ thuật chuyên sâu bằng tiếng Việt theo đúng format sau:

Báo cáo Phân tích Kỹ thuật,
[Thời gian hiện tại]

`)
	fmt.Fprintf(&b, "%s: [KHUYẾN NGHỊ - dựa trên dữ liệu]\n", ticker)
	b.WriteString(`---------------------------
Vùng Mua (Entry): [Giá entry đề xuất]
Take Profit:
TP1: [Giá]
TP2: [Giá]
TP3: [Giá]
Stop Loss: [Giá]
---------------------------

1. XU HƯỚNG & CẤU TRÚC GIÁ
[Phân tích xu hướng dựa trên MA, cấu trúc đỉnh/đáy, pha Wyckoff. Giải thích "Golden Alignment" nếu có.]

2. PHÂN TÍCH HÀNH ĐỘNG GIÁ (PRICE ACTION)
[Mô tả hành động giá hiện tại, phản ứng tại các vùng hỗ trợ/kháng cự, các pattern nến quan trọng.]

3. CHỈ BÁO KỸ THUẬT
[Phân tích RSI (vùng quá mua/quá bán), MACD Histogram (momentum), Volume (xác nhận dòng tiền).]

4. PHÂN TÍCH CƠ BẢN (FUNDAMENTAL)
[Nếu có dữ liệu fundamental: Đánh giá P/E so với ngành, tăng trưởng doanh thu/lợi nhuận, ROE. Nếu không có dữ liệu: ghi "Chưa có dữ liệu fundamental."]

5. VÙNG GIÁ QUAN TRỌNG
[Liệt kê và giải thích các mức hỗ trợ/kháng cự quan trọng, dynamic support từ MA.]

6. CHIẾN LƯỢC GIAO DỊCH
[Đề xuất cụ thể: kịch bản Bullish/Bearish, vùng Entry tối ưu, Stop Loss, Take Profit. LƯU Ý: CHỈ PHÂN TÍCH CHO LONG (MUA), KHÔNG CÓ SHORT vì thị trường VN chưa cho phép bán khống.]

7. RỦI RO
[Các rủi ro kỹ thuật và cơ bản cần lưu ý: phân kỳ, volume thấp, P/E quá cao, tăng trưởng âm, invalidation conditions.]

KẾT LUẬN: [Tóm tắt ngắn gọn kết hợp cả kỹ thuật và cơ bản (nếu có). Đánh giá tổng quan.]

---
QUAN TRỌNG:
- Sử dụng các thuật ngữ chuyên môn như: Golden Alignment, Wyckoff Phase, Dynamic Support, Bullish/Bearish Divergence
- Bám sát số liệu được cung cấp, không bịa thêm dữ liệu
`)

	return b.String()
}
