package flags

const Verbose = `v`
const Quiet = `q`
const Plain = `p`
const Help = `h`
const Config = `config`
const ListAsTree = `tree`
const RestoreOverwriting = `overwrite`
const DeleteAll = `all`
const DeleteWithoutConfirmation = `no-confirm`
const MonitorReloadSchedule = `reload-every`
