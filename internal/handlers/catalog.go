package handlers

import "net/http"

// PriceEntry is one row of the public price list.
type PriceEntry struct {
	Service string `json:"service"`
	From    int64  `json:"from"`
	Unit    string `json:"unit"`
}

// FAQEntry is one public FAQ item.
type FAQEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

var priceList = []PriceEntry{
	{Service: "essay", From: 300, Unit: "page"},
	{Service: "coursework", From: 1500, Unit: "work"},
	{Service: "thesis", From: 8000, Unit: "work"},
	{Service: "lab_report", From: 400, Unit: "work"},
	{Service: "presentation", From: 500, Unit: "work"},
}

var faqList = []FAQEntry{
	{
		Question: "How do I place an order?",
		Answer:   "Register an account, fill in the order form and attach any materials. A manager will confirm the price in the order chat.",
	},
	{
		Question: "How do I pay?",
		Answer:   "Payment details are sent in your support chat after the price is confirmed.",
	},
	{
		Question: "Can I talk to the person working on my order?",
		Answer:   "Yes, every order has its own chat thread available from the order page.",
	},
	{
		Question: "What if I need changes?",
		Answer:   "Revisions within the original requirements are free for two weeks after delivery.",
	},
}

// Prices returns the public price list.
func (h *Handler) Prices(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, map[string]interface{}{"prices": priceList})
}

// FAQ returns the public FAQ.
func (h *Handler) FAQ(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, map[string]interface{}{"faq": faqList})
}
