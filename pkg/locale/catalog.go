package locale

// Catalog maps message ids to bilingual UI strings.
type Catalog map[string]Text

// T returns the message for key in l, falling back to the other locale and
// finally to the key itself so a missing entry is visible but never blank.
func (c Catalog) T(l Locale, key string) string {
	msg, ok := c[key]
	if !ok || msg.IsZero() {
		return key
	}

	return msg.Resolve(l)
}

// Merge returns a catalog with the entries of other layered over c.
func (c Catalog) Merge(other Catalog) Catalog {
	out := make(Catalog, len(c)+len(other))

	for k, v := range c {
		out[k] = v
	}

	for k, v := range other {
		out[k] = v
	}

	return out
}

// Messages is the built-in UI string catalog.
var Messages = Catalog{
	"nav.home":              New("الرئيسية", "Home"),
	"nav.programs":          New("البرامج", "Programs"),
	"nav.events":            New("الفعاليات", "Events"),
	"nav.resources":         New("المصادر", "Resources"),
	"nav.videos":            New("المرئيات", "Videos"),
	"nav.contact":           New("تواصل معنا", "Contact"),
	"nav.switch_locale":     New("English", "العربية"),
	"home.kpis":             New("أثرنا بالأرقام", "Our impact"),
	"home.programs":         New("برامجنا", "Our programs"),
	"home.events":           New("الفعاليات القادمة", "Upcoming events"),
	"home.posts":            New("أحدث المقالات", "Latest articles"),
	"common.read_more":      New("اقرأ المزيد", "Read more"),
	"common.empty":          New("لا يوجد محتوى حالياً", "Nothing here yet"),
	"common.back":           New("رجوع", "Back"),
	"events.starts":         New("يبدأ", "Starts"),
	"events.ends":           New("ينتهي", "Ends"),
	"events.location":       New("المكان", "Location"),
	"events.register":       New("التسجيل", "Register"),
	"events.add_calendar":   New("أضف إلى التقويم", "Add to calendar"),
	"resources.search":      New("بحث", "Search"),
	"resources.all_tags":    New("كل الوسوم", "All tags"),
	"resources.newest":      New("الأحدث", "Newest"),
	"resources.oldest":      New("الأقدم", "Oldest"),
	"contact.name":          New("الاسم", "Name"),
	"contact.email":         New("البريد الإلكتروني", "Email"),
	"contact.phone":         New("الهاتف", "Phone"),
	"contact.subject":       New("الموضوع", "Subject"),
	"contact.message":       New("الرسالة", "Message"),
	"contact.send":          New("إرسال", "Send"),
	"contact.thanks":        New("شكراً لتواصلك معنا. رقم المرجع:", "Thank you for reaching out. Reference:"),
	"notfound.title":        New("الصفحة غير موجودة", "Page not found"),
	"notfound.body":         New("لم نتمكن من العثور على الصفحة المطلوبة.", "We could not find the page you were looking for."),
	"admin.login":           New("تسجيل الدخول", "Sign in"),
	"admin.logout":          New("تسجيل الخروج", "Sign out"),
	"admin.password":        New("كلمة المرور", "Password"),
	"admin.no_role":         New("ليس لديك صلاحية بعد. يرجى التواصل مع المسؤول.", "You do not have access yet. Please contact an administrator."),
	"admin.bad_credentials": New("بيانات الدخول غير صحيحة", "Invalid email or password"),
	"admin.dashboard":       New("لوحة التحكم", "Dashboard"),
	"error.rate_limited":    New("تم تجاوز حد الطلبات، حاول لاحقاً", "Too many requests, please try again later"),
	"error.payment":         New("نفد رصيد خدمة توليد الصور", "Image generation credits are exhausted"),
	"error.generation":      New("تعذر توليد الصورة", "Image generation failed"),
	"error.load":            New("تعذر تحميل المحتوى، حاول لاحقاً", "Content could not be loaded, please try again later"),
	"contact.invalid":       New("يرجى مراجعة الحقول المطلوبة", "Please check the highlighted fields"),
	"events.past":           New("فعاليات سابقة", "Past events"),
	"events.export":         New("تقويم الفعاليات", "Events calendar"),
	"videos.watch":          New("مشاهدة", "Watch"),
	"admin.email":           New("البريد الإلكتروني", "Email"),
	"admin.signed_in_as":    New("مسجل الدخول باسم", "Signed in as"),
	"site.rss":              New("خلاصة RSS", "RSS feed"),
}
