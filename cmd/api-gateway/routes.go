package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/edutenant-api/internal/handler"
	internalmiddleware "github.com/noah-isme/edutenant-api/internal/middleware"
	"github.com/noah-isme/edutenant-api/internal/models"
	"github.com/noah-isme/edutenant-api/pkg/config"
)

type routeHandlers struct {
	auth          *handler.AuthHandler
	tenant        *handler.TenantHandler
	user          *handler.UserHandler
	academicYear  *handler.AcademicYearHandler
	term          *handler.TermHandler
	class         *handler.ClassHandler
	subject       *handler.SubjectHandler
	department    *handler.DepartmentHandler
	staff         *handler.StaffHandler
	payment       *handler.PaymentHandler
	payroll       *handler.PayrollHandler
	message       *handler.MessageHandler
	notification  *handler.NotificationHandler
	communication *handler.CommunicationHandler
	setting       *handler.SettingHandler
	dashboard     *handler.DashboardHandler
	system        *handler.SystemHandler
}

type routeDeps struct {
	tokens   internalmiddleware.TokenValidator
	resolver internalmiddleware.ScopeResolver
	audit    internalmiddleware.AuditWriter
	logger   *zap.Logger
}

func registerRoutes(r *gin.Engine, cfg *config.Config, h routeHandlers, deps routeDeps) {
	r.GET("/health", h.system.Health)
	r.GET("/ready", h.system.Ready)
	r.GET("/metrics", h.system.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	audited := func(action, resource string) gin.HandlerFunc {
		return internalmiddleware.Audit(deps.audit, deps.logger, action, resource)
	}
	superadmin := internalmiddleware.RequireRoles(models.RoleSuperAdmin)
	admin := internalmiddleware.RequireRoles(models.RoleAdmin)
	finance := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleBursar)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", h.auth.Login)
	auth.POST("/refresh", h.auth.Refresh)
	authed := auth.Group("", internalmiddleware.JWT(deps.tokens))
	authed.POST("/logout", h.auth.Logout)
	authed.POST("/change-password", h.auth.ChangePassword)
	authed.GET("/me", h.auth.Me)

	// Tenant ownership is checked per request inside the handler.
	platform := api.Group("", internalmiddleware.JWT(deps.tokens), admin)
	platform.GET("/tenants", h.tenant.List)
	platform.POST("/tenants", superadmin, h.tenant.Create)
	platform.GET("/tenants/:id", h.tenant.Get)
	platform.PUT("/tenants/:id", h.tenant.Update)
	platform.DELETE("/tenants/:id", superadmin, h.tenant.Delete)
	platform.GET("/tenants/:id/schools", h.tenant.ListSchools)
	platform.POST("/tenants/:id/schools", audited("SCHOOL_CREATE", "schools"), h.tenant.CreateSchool)
	platform.GET("/schools/:id", h.tenant.GetSchool)
	platform.PUT("/schools/:id", audited("SCHOOL_UPDATE", "schools"), h.tenant.UpdateSchool)
	platform.DELETE("/schools/:id", audited("SCHOOL_DELETE", "schools"), h.tenant.DeleteSchool)
	platform.GET("/system/metrics", h.system.Snapshot)

	scoped := api.Group("", internalmiddleware.JWT(deps.tokens), internalmiddleware.Tenant(deps.resolver, internalmiddleware.TenantHeaders{
		Tenant: cfg.Tenancy.TenantHeader,
		School: cfg.Tenancy.SchoolHeader,
	}))

	scoped.GET("/dashboard/summary", h.dashboard.Summary)

	users := scoped.Group("/users", admin)
	users.GET("", h.user.List)
	users.GET("/:id", h.user.Get)
	users.POST("", h.user.Create)
	users.PUT("/:id", h.user.Update)
	users.DELETE("/:id", h.user.Delete)

	years := scoped.Group("/academic-years")
	years.GET("", h.academicYear.List)
	years.GET("/current", h.academicYear.Current)
	years.GET("/:id", h.academicYear.Get)
	years.POST("", admin, audited("ACADEMIC_YEAR_CREATE", "academic_years"), h.academicYear.Create)
	years.PUT("/:id", admin, audited("ACADEMIC_YEAR_UPDATE", "academic_years"), h.academicYear.Update)
	years.DELETE("/:id", admin, audited("ACADEMIC_YEAR_DELETE", "academic_years"), h.academicYear.Delete)

	terms := scoped.Group("/terms")
	terms.GET("", h.term.List)
	terms.GET("/current", h.term.Current)
	terms.GET("/:id", h.term.Get)
	terms.POST("", admin, audited("TERM_CREATE", "terms"), h.term.Create)
	terms.PUT("/:id", admin, audited("TERM_UPDATE", "terms"), h.term.Update)
	terms.POST("/:id/set-current", admin, audited("TERM_SET_CURRENT", "terms"), h.term.SetCurrent)
	terms.DELETE("/:id", admin, audited("TERM_DELETE", "terms"), h.term.Delete)

	classes := scoped.Group("/classes")
	classes.GET("", h.class.List)
	classes.GET("/:id", h.class.Get)
	classes.POST("", admin, audited("CLASS_CREATE", "classes"), h.class.Create)
	classes.PUT("/:id", admin, audited("CLASS_UPDATE", "classes"), h.class.Update)
	classes.DELETE("/:id", admin, audited("CLASS_DELETE", "classes"), h.class.Delete)

	subjects := scoped.Group("/subjects")
	subjects.GET("", h.subject.List)
	subjects.GET("/:id", h.subject.Get)
	subjects.POST("", admin, audited("SUBJECT_CREATE", "subjects"), h.subject.Create)
	subjects.PUT("/:id", admin, audited("SUBJECT_UPDATE", "subjects"), h.subject.Update)
	subjects.DELETE("/:id", admin, audited("SUBJECT_DELETE", "subjects"), h.subject.Delete)

	departments := scoped.Group("/departments")
	departments.GET("", h.department.List)
	departments.GET("/:id", h.department.Get)
	departments.POST("", admin, audited("DEPARTMENT_CREATE", "departments"), h.department.Create)
	departments.PUT("/:id", admin, audited("DEPARTMENT_UPDATE", "departments"), h.department.Update)
	departments.DELETE("/:id", admin, audited("DEPARTMENT_DELETE", "departments"), h.department.Delete)

	staff := scoped.Group("/staff")
	staff.GET("", h.staff.List)
	staff.GET("/:id", h.staff.Get)
	staff.POST("", admin, audited("STAFF_CREATE", "staff"), h.staff.Create)
	staff.PUT("/:id", admin, audited("STAFF_UPDATE", "staff"), h.staff.Update)
	staff.DELETE("/:id", admin, audited("STAFF_DELETE", "staff"), h.staff.Delete)

	payments := scoped.Group("/payments", finance)
	payments.GET("", h.payment.List)
	payments.GET("/export", h.payment.Export)
	payments.GET("/:id", h.payment.Get)
	payments.POST("", audited("PAYMENT_CREATE", "payments"), h.payment.Create)
	payments.PUT("/:id", audited("PAYMENT_UPDATE", "payments"), h.payment.Update)
	payments.DELETE("/:id", audited("PAYMENT_DELETE", "payments"), h.payment.Delete)

	payroll := scoped.Group("/payroll", finance)
	payroll.GET("", h.payroll.List)
	payroll.GET("/export", h.payroll.Export)
	payroll.GET("/:id", h.payroll.Get)
	payroll.POST("", audited("PAYROLL_CREATE", "payroll"), h.payroll.Create)
	payroll.PUT("/:id", audited("PAYROLL_UPDATE", "payroll"), h.payroll.Update)
	payroll.POST("/:id/mark-paid", h.payroll.MarkPaid)
	payroll.DELETE("/:id", audited("PAYROLL_DELETE", "payroll"), h.payroll.Delete)

	messages := scoped.Group("/messages")
	messages.GET("", h.message.List)
	messages.GET("/:id", h.message.Get)
	messages.POST("", h.message.Send)
	messages.PUT("/:id", h.message.Update)
	messages.POST("/:id/read", h.message.MarkRead)
	messages.DELETE("/:id", h.message.Delete)

	notifications := scoped.Group("/notifications")
	notifications.GET("", h.notification.List)
	notifications.GET("/unread-count", h.notification.UnreadCount)
	notifications.GET("/:id", h.notification.Get)
	notifications.POST("", admin, h.notification.Create)
	notifications.PUT("/:id", admin, h.notification.Update)
	notifications.POST("/read-all", h.notification.MarkAllRead)
	notifications.POST("/:id/read", h.notification.MarkRead)
	notifications.DELETE("/:id", admin, h.notification.Delete)

	communications := scoped.Group("/communications", admin)
	communications.GET("", h.communication.List)
	communications.GET("/:id", h.communication.Get)
	communications.POST("/email", audited("EMAIL_QUEUED", "communication_logs"), h.communication.SendEmail)
	communications.POST("/sms", audited("SMS_QUEUED", "communication_logs"), h.communication.SendSMS)

	settings := scoped.Group("/settings")
	settings.GET("", h.setting.List)
	settings.GET("/:key", h.setting.Get)
	settings.PUT("/bulk", admin, h.setting.Bulk)
	settings.PUT("/:key", admin, h.setting.Upsert)
	settings.DELETE("/:key", admin, h.setting.Delete)
}
