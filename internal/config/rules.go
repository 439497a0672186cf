package config

// DefaultContactPaths are tried after a lead's home page, in order.
func DefaultContactPaths() []string {
	return []string{"/contact", "/contacts", "/about", "/kontakt", "/kontakty", "/o-nas", "/o-kompanii"}
}

// DefaultRules is the built-in service catalogue used when the config
// file declares no categories.
func DefaultRules() []Rule {
	return []Rule{
		{
			Service:    "web_development",
			Keywords:   []string{"website", "web site", "landing", "online store", "e-commerce", "сайт", "интернет-магазин", "лендинг"},
			Industries: []string{"retail", "restaurant", "furniture", "hotel", "clinic", "education", "магазин", "ресторан", "мебель", "гостиница", "клиника"},
			Boost:      15,
			Queries:    []string{"restaurants", "furniture stores", "dental clinics", "hotels"},
		},
		{
			Service:    "mobile_development",
			Keywords:   []string{"app", "mobile", "delivery", "booking", "приложение", "доставка", "бронирование"},
			Industries: []string{"delivery", "taxi", "fitness", "food", "доставка", "фитнес", "такси"},
			Boost:      15,
			Queries:    []string{"food delivery", "fitness clubs", "taxi services"},
		},
		{
			Service:    "crm_automation",
			Keywords:   []string{"crm", "sales", "wholesale", "distribution", "logistics", "оптом", "продажи", "логистика"},
			Industries: []string{"wholesale", "supplier", "logistics", "real estate", "недвижимость", "логистика", "опт"},
			Boost:      10,
			Queries:    []string{"wholesale suppliers", "logistics companies", "real estate agencies"},
		},
		{
			Service:    "digital_marketing",
			Keywords:   []string{"marketing", "advertising", "promotion", "seo", "smm", "реклама", "маркетинг", "продвижение"},
			Industries: []string{"beauty", "salon", "cafe", "car dealer", "салон", "кафе", "автосалон"},
			Boost:      10,
			Queries:    []string{"beauty salons", "cafes", "car dealerships"},
		},
		{
			Service:    "design_branding",
			Keywords:   []string{"design", "brand", "logo", "identity", "дизайн", "бренд", "логотип"},
			Industries: []string{"fashion", "boutique", "interior", "мода", "бутик", "интерьер"},
			Boost:      10,
			Queries:    []string{"boutiques", "interior studios"},
		},
		{
			Service:    "it_consulting",
			Keywords:   []string{"it services", "it company", "software", "automation", "erp", "1c", "программное обеспечение", "автоматизация"},
			Industries: []string{"manufacturing", "factor", "accounting", "bank", "производство", "завод", "бухгалтер"},
			Boost:      10,
			Queries:    []string{"manufacturing companies", "factories", "accounting firms"},
		},
	}
}
