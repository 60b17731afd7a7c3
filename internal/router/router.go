package router

import (
	"time"

	"cajapos/internal/config"
	"cajapos/internal/handler"
	"cajapos/internal/infra"
	"cajapos/internal/middleware"
	"cajapos/internal/pos"
	"cajapos/internal/repository"
	"cajapos/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the components built by the composition root in cmd/server.
type Deps struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Breaker   *infra.Breaker
	Terminal  *pos.Terminal
	Catalog   *service.CatalogService
	Caja      service.CajaService
	Journal   repository.EnvioRepository
	Submitter *pos.InvoiceSubmitter
}

// New returns the configured Gin engine of the terminal gateway.
func New(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.Origins()))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(d.Redis, 1000, time.Minute))

	posH := handler.NewPosHandler(d.Terminal, d.Catalog)
	cajaH := handler.NewCajaHandler(d.Caja)
	facturasH := handler.NewFacturasHandler(d.Journal, d.Submitter)

	r.GET("/health", handler.Health(d.DB, d.Redis, d.Breaker))

	p := r.Group("/v1/pos")
	{
		p.GET("/estado", posH.Estado)
		p.GET("/productos", posH.BuscarProductos)

		p.POST("/carrito/lineas", posH.AgregarLinea)
		p.PATCH("/carrito/lineas/:id", posH.ActualizarCantidad)
		p.DELETE("/carrito/lineas/:id", posH.EliminarLinea)
		p.POST("/carrito/ultimo", posH.AjustarUltimo)
		p.DELETE("/carrito", posH.VaciarCarrito)

		p.PUT("/descuento", posH.Descuento)
		p.PUT("/cliente", posH.Cliente)
		p.PUT("/pago", posH.Pago)
		p.DELETE("/pago", posH.CancelarPago)
		p.POST("/facturar", posH.Facturar)

		p.POST("/teclas", posH.Teclas)
		p.PUT("/escaner/manual", posH.EscanerManual)

		p.GET("/facturas", facturasH.Listar)
		p.GET("/facturas/:id/pdf", facturasH.PDF)
		p.POST("/facturas/:id/reintentar-movimiento", facturasH.ReintentarMovimiento)
	}

	caja := r.Group("/v1/caja")
	{
		caja.GET("/estado", cajaH.Estado)
		caja.POST("/abrir", cajaH.Abrir)
		caja.POST("/cerrar", cajaH.Cerrar)
		caja.POST("/movimientos", cajaH.RegistrarMovimiento)
		caja.GET("/conciliacion", cajaH.Conciliacion)
		caja.GET("/estadisticas", cajaH.Estadisticas)
		caja.GET("/reporte/pdf", cajaH.ReportePDF)
	}

	r.GET("/v1/sistema/fallidos", handler.Fallidos(d.Redis))

	// Swagger UI — only enabled outside production
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
