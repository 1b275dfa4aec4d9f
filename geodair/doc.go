/*

Package geodair holds what the stages of the Geod'air air quality pipeline share:
configuration, object storage, the pollutant referential, run reports, metrics,
logging and notifications.

The pipeline runs once a day for the previous day in three stages.

	extract    Geod'air API -> raw/geodair/<date>/MoyH_<code>.csv
	transform  raw/geodair/<date>/ -> transform/geodair/<date>/<TABLE>.csv
	load       transform/geodair/<date>/<TABLE>.csv -> BigQuery <dataset>.<TABLE>

Each stage returns a Report whose Status maps to the HTTP status of the entry points.

	rep := t.Run(ctx, "2024-01-15")
	if rep.Status != geodair.StatusOK {
		log.Ctx(ctx).Warn().Str("status", rep.Status.String()).Msg(rep.Message)
	}

Storage is either a Cloud Storage bucket or, for local runs, a directory.

	s, err := geodair.NewDirStorage("./data")
	if err != nil {
		return err
	}

*/
package geodair
