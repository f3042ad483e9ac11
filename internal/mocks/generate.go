package mocks

//go:generate mockery --name StatStore --srcpkg github.com/aevon-lab/cruncher/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
//go:generate mockery --name Publisher --srcpkg github.com/aevon-lab/cruncher/internal/ingestion --output ./ingestion --outpkg ingestionmocks --with-expecter
//go:generate mockery --name Flusher --srcpkg github.com/aevon-lab/cruncher/internal/ingestion --output ./ingestion --outpkg ingestionmocks --with-expecter
